package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/cli/reader"
	"github.com/pithecene-io/flight/cli/render"
	"github.com/pithecene-io/flight/cli/tui"
	"github.com/pithecene-io/flight/lode"
)

// storageReadTimeout bounds a single read-only Lode query.
const storageReadTimeout = 30 * time.Second

// StatsCommand returns the stats command.
// Stats reads the latest stream metrics record from Lode.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show stream metrics recorded by decode",
		Flags: append(append(ReadOnlyFlags(), StorageReadFlags()...),
			&cli.StringFlag{Name: "stream-id", Usage: "Read metrics for a specific stream ID"},
			&cli.StringFlag{Name: "source", Usage: "Filter by source partition"},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(c.Context, storageReadTimeout)
	defer cancel()

	ds, err := buildReadDataset(ctx, readStorageChoice(c))
	if err != nil {
		return fmt.Errorf("failed to initialize storage reader: %w", err)
	}

	record, err := lode.QueryLatestMetrics(ctx, ds, c.String("stream-id"), c.String("source"))
	if err != nil {
		return fmt.Errorf("failed to read metrics from Lode: %w", err)
	}

	snapshot, err := reader.ParseMetricsRecord(record)
	if err != nil {
		return fmt.Errorf("failed to parse metrics record: %w", err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewMetrics, snapshot)
	}

	return r.Render(snapshot)
}
