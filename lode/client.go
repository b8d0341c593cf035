package lode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/flight/metrics"
	"github.com/pithecene-io/flight/types"
)

// LodeClient is a Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys source/day/stream_id/kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	mu  sync.Mutex // guards seq
	seq int64      // stream position of the next chunk record
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

// WriteChunks writes a batch of chunks as chunk records.
// Each record carries its position in the stream (seq), computed
// cumulatively across batches. seq only advances after a successful write,
// so a retried batch keeps its positions.
func (c *LodeClient) WriteChunks(ctx context.Context, _, _ string, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]any, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, toChunkRecordMap(chunk, c.seq+int64(i), c.config))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath())
	}

	c.seq += int64(len(chunks))
	return nil
}

// WriteMetrics writes one metrics record for the stream.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	record := toMetricsRecordMap(snap, completedAt, c.config)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath())
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset needs no explicit close.
	return nil
}

// partitionPath is the stream's partition prefix, used in error context.
func (c *LodeClient) partitionPath() string {
	return fmt.Sprintf("%s/source=%s/day=%s/stream_id=%s",
		c.config.Dataset, c.config.Source, c.config.Day, c.config.StreamID)
}

var _ Client = (*LodeClient)(nil)
