// Package lode persists decoded chunks and stream metrics to a Lode dataset.
//
// Records are JSONL, Hive-partitioned by source/day/stream_id/kind. The
// filesystem, in-memory and S3 stores are all supported through
// lode.StoreFactory.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/flight/policy"
	"github.com/pithecene-io/flight/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "flight"

// DeriveDay computes the partition day from the stream start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds Lode sink configuration.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// Source is the partition key naming where the stream came from.
	Source string
	// Day is the partition key derived from stream start (YYYY-MM-DD UTC).
	Day string
	// StreamID is the partition key for one decode run.
	StreamID string
	// Policy is the persistence policy name, recorded on every record.
	Policy string
}

// Client abstracts the Lode storage client.
type Client interface {
	// WriteChunks writes a batch of chunks to Lode.
	// Must preserve ordering within the batch.
	WriteChunks(ctx context.Context, dataset, streamID string, chunks []*types.Chunk) error

	// Close releases client resources.
	Close() error
}

// Sink is a Lode-backed implementation of policy.Sink.
type Sink struct {
	config Config
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(config Config, client Client) *Sink {
	return &Sink{
		config: config,
		client: client,
	}
}

// WriteChunks implements policy.Sink.
func (s *Sink) WriteChunks(ctx context.Context, chunks []*types.Chunk) error {
	return s.client.WriteChunks(ctx, s.config.Dataset, s.config.StreamID, chunks)
}

// Close implements policy.Sink.
func (s *Sink) Close() error {
	return s.client.Close()
}

var _ policy.Sink = (*Sink)(nil)

// StubClient is a test client that records writes without persisting.
type StubClient struct {
	mu     sync.Mutex
	Writes []StubWrite
	Closed bool
}

// StubWrite is a recorded chunk write.
type StubWrite struct {
	Dataset  string
	StreamID string
	Chunks   []*types.Chunk
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteChunks implements Client.
func (c *StubClient) WriteChunks(_ context.Context, dataset, streamID string, chunks []*types.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Writes = append(c.Writes, StubWrite{
		Dataset:  dataset,
		StreamID: streamID,
		Chunks:   chunks,
	})
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

var _ Client = (*StubClient)(nil)
