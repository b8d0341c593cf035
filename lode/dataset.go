package lode

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/flight/types"
)

// newDataset opens a dataset with the JSONL codec and the stream partition
// layout. Writers and readers share it so both see the same paths.
func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewReadDataset opens a dataset for reading.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// NewReadDatasetFS opens a filesystem dataset for reading.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// NewReadDatasetS3 opens an S3 dataset for reading.
func NewReadDatasetS3(ctx context.Context, dataset string, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := newS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return NewReadDataset(dataset, factory)
}

// StoredChunk is a chunk read back from the dataset with its stream position.
type StoredChunk struct {
	Seq      int64
	StreamID string
	Source   string
	Chunk    types.Chunk
}

// ReadChunkRecords reads every chunk record of a stream, ordered by seq.
// An empty streamID matches all streams. A record seen in more than one
// snapshot is returned once.
func ReadChunkRecords(ctx context.Context, ds lode.Dataset, streamID string) ([]StoredChunk, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	type key struct {
		stream string
		seq    int64
	}
	seen := make(map[key]bool)

	var out []StoredChunk
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, PartitionStreamID, streamID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if streamID != "" && toString(record[PartitionStreamID]) != streamID {
				continue
			}
			c, seq, ok := DecodeChunkRecord(record)
			k := key{toString(record[PartitionStreamID]), seq}
			if !ok || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, StoredChunk{
				Seq:      seq,
				StreamID: k.stream,
				Source:   toString(record[PartitionSource]),
				Chunk:    c,
			})
		}
	}

	slices.SortStableFunc(out, func(a, b StoredChunk) int {
		if a.StreamID != b.StreamID {
			return strings.Compare(a.StreamID, b.StreamID)
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

// isMetricsSnapshot reports whether a snapshot holds the kind=metrics partition.
func isMetricsSnapshot(snap *lode.DatasetSnapshot) bool {
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, PartitionKind, RecordKindMetrics) {
			return true
		}
	}
	return false
}

// snapshotMatchesFilter reports whether any file in the snapshot lives under
// key=value. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue checks for an exact key=value path segment, so
// stream_id=s-1 does not match stream_id=s-10.
func matchesPartitionValue(path, key, value string) bool {
	return slices.Contains(strings.Split(path, "/"), key+"="+value)
}
