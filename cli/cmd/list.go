package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/cli/reader"
	"github.com/pithecene-io/flight/cli/render"
	"github.com/pithecene-io/flight/lode"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// ListCommand returns the list command with subcommands.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored entities",
		Subcommands: []*cli.Command{
			listChunksCommand(),
		},
	}
}

func listChunksCommand() *cli.Command {
	return &cli.Command{
		Name:  "chunks",
		Usage: "List the chunks persisted for a stream",
		Flags: append(append(ReadOnlyFlags(), StorageReadFlags()...),
			&cli.StringFlag{
				Name:     "stream-id",
				Usage:    "Stream ID to list",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only list chunks of this kind",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of chunks to return (0 = no limit)",
				Value: 0,
			},
		),
		Action: listChunksAction,
	}
}

func listChunksAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for list commands
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for list commands", 1)
	}

	ctx, cancel := context.WithTimeout(c.Context, storageReadTimeout)
	defer cancel()

	ds, err := buildReadDataset(ctx, readStorageChoice(c))
	if err != nil {
		return fmt.Errorf("failed to initialize storage reader: %w", err)
	}

	stored, err := lode.ReadChunkRecords(ctx, ds, c.String("stream-id"))
	if err != nil {
		return fmt.Errorf("failed to read chunks from Lode: %w", err)
	}

	rows := filterRows(reader.StoredChunkRows(stored), c.String("kind"), c.Int("limit"))

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(rows) > listWarningThreshold && c.Int("limit") == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(rows))
	}

	return r.Render(rows)
}

// filterRows keeps rows of kind (all when empty), up to limit (0 = no limit).
func filterRows(rows []reader.ChunkRow, kind string, limit int) []reader.ChunkRow {
	out := make([]reader.ChunkRow, 0, len(rows))
	for _, row := range rows {
		if kind != "" && row.Kind != kind {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
