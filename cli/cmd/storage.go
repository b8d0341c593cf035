package cmd

import (
	"context"
	"errors"
	"fmt"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/cli/config"
	"github.com/pithecene-io/flight/lode"
)

// storageChoice holds parsed Lode storage configuration.
type storageChoice struct {
	dataset   string
	backend   string // "", "fs", "s3" or "memory"
	path      string // fs: directory, s3: bucket/prefix
	region    string
	endpoint  string
	pathStyle bool
}

// enabled reports whether chunks are persisted at all.
func (s storageChoice) enabled() bool {
	return s.backend != ""
}

// backendName is the storage_backend label used in metrics.
func (s storageChoice) backendName() string {
	if s.backend == "" {
		return "none"
	}
	return s.backend
}

func (s storageChoice) s3Config() lode.S3Config {
	bucket, prefix := lode.ParseS3Path(s.path)
	return lode.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       s.region,
		Endpoint:     s.endpoint,
		UsePathStyle: s.pathStyle,
	}
}

func (s storageChoice) validate() error {
	switch s.backend {
	case "", "memory":
		return nil
	case "fs", "s3":
		if s.path == "" {
			return fmt.Errorf("--lode-path is required for the %s backend", s.backend)
		}
		return nil
	default:
		return fmt.Errorf("unknown lode-backend: %s (must be fs, s3 or memory)", s.backend)
	}
}

// resolveStorage reads the decode storage flags with config precedence.
func resolveStorage(c *cli.Context, cfg *config.Config) storageChoice {
	sc := storageChoice{
		dataset:  resolveString(c, "dataset", configVal(cfg, func(c *config.Config) string { return c.Storage.Dataset })),
		backend:  resolveString(c, "lode-backend", configVal(cfg, func(c *config.Config) string { return c.Storage.Backend })),
		path:     resolveString(c, "lode-path", configVal(cfg, func(c *config.Config) string { return c.Storage.Path })),
		region:   resolveString(c, "lode-s3-region", configVal(cfg, func(c *config.Config) string { return c.Storage.Region })),
		endpoint: resolveString(c, "lode-s3-endpoint", configVal(cfg, func(c *config.Config) string { return c.Storage.Endpoint })),
	}
	if c.IsSet("lode-s3-path-style") {
		sc.pathStyle = c.Bool("lode-s3-path-style")
	} else {
		sc.pathStyle = configVal(cfg, func(c *config.Config) bool { return c.Storage.S3PathStyle })
	}
	if sc.dataset == "" {
		sc.dataset = lode.DefaultDataset
	}
	return sc
}

// buildLodeClient creates the write client for the chosen backend.
func buildLodeClient(ctx context.Context, sc storageChoice, cfg lode.Config) (*lode.LodeClient, error) {
	switch sc.backend {
	case "fs":
		return lode.NewLodeClient(cfg, sc.path)
	case "s3":
		return lode.NewLodeS3Client(ctx, cfg, sc.s3Config())
	case "memory":
		return lode.NewLodeClientWithFactory(cfg, lodelibrary.NewMemoryFactory())
	default:
		return nil, fmt.Errorf("unknown lode-backend: %s", sc.backend)
	}
}

// readStorageChoice reads the --storage-* flags of read-only commands.
func readStorageChoice(c *cli.Context) storageChoice {
	return storageChoice{
		dataset:   c.String("storage-dataset"),
		backend:   c.String("storage-backend"),
		path:      c.String("storage-path"),
		region:    c.String("storage-region"),
		endpoint:  c.String("storage-endpoint"),
		pathStyle: c.Bool("storage-path-style"),
	}
}

var errStorageRequired = errors.New("both --storage-backend and --storage-path are required")

// buildReadDataset opens a Lode dataset for reading.
func buildReadDataset(ctx context.Context, sc storageChoice) (lodelibrary.Dataset, error) {
	if sc.backend == "" || sc.path == "" {
		return nil, errStorageRequired
	}
	switch sc.backend {
	case "fs":
		return lode.NewReadDatasetFS(sc.dataset, sc.path)
	case "s3":
		return lode.NewReadDatasetS3(ctx, sc.dataset, sc.s3Config())
	default:
		return nil, fmt.Errorf("unsupported storage-backend: %s (must be fs or s3)", sc.backend)
	}
}
