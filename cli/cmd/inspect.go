package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/cli/reader"
	"github.com/pithecene-io/flight/cli/render"
	"github.com/pithecene-io/flight/cli/tui"
	"github.com/pithecene-io/flight/types"
)

// InspectCommand returns the inspect command.
// Inspect reads a chunk export written by decode --export.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a chunk export",
		ArgsUsage: "<export|->",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "chunks",
				Usage: "Show the chunk log instead of the summary",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("inspect requires exactly one export argument (<file> or -)", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	chunks, end, readErr := reader.ReadExport(c.Args().First())
	if readErr != nil && len(chunks) == 0 && end == nil {
		return cli.Exit(readErr.Error(), 1)
	}
	if readErr != nil {
		// Show what was readable, then fail.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", readErr)
	}

	var view string
	var data any
	if c.Bool("chunks") {
		view, data = tui.ViewChunks, exportRows(chunks)
	} else {
		view, data = tui.ViewExport, reader.SummarizeExport(chunks, end)
	}

	if c.Bool("tui") {
		err = r.RenderTUI(view, data)
	} else {
		err = r.Render(data)
	}
	if err != nil {
		return err
	}
	if readErr != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func exportRows(chunks []*types.Chunk) []reader.ChunkRow {
	rows := make([]reader.ChunkRow, 0, len(chunks))
	for i, c := range chunks {
		rows = append(rows, reader.NewChunkRow(int64(i), c))
	}
	return rows
}
