package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoMetricsFound is returned when no matching metrics record exists.
var ErrNoMetricsFound = errors.New("no metrics records found")

// QueryLatestMetrics returns the most recent metrics record, optionally
// filtered by stream ID and source. The record is returned as read from the
// dataset, so counters may come back as float64.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, streamID, source string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	// Snapshots are ordered oldest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !isMetricsSnapshot(snap) ||
			!snapshotMatchesFilter(snap, PartitionStreamID, streamID) ||
			!snapshotMatchesFilter(snap, PartitionSource, source) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}

		// Manifest paths are a coarse filter; record fields decide.
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindMetrics {
				continue
			}
			if streamID != "" && toString(record[PartitionStreamID]) != streamID {
				continue
			}
			if source != "" && toString(record[PartitionSource]) != source {
				continue
			}
			return record, nil
		}
	}

	return nil, ErrNoMetricsFound
}
