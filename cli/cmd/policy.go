package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/cli/config"
	"github.com/pithecene-io/flight/log"
	"github.com/pithecene-io/flight/policy"
)

// policyChoice holds parsed policy configuration.
type policyChoice struct {
	name          string
	maxChunks     int
	maxBytes      int64
	flushCount    int
	flushInterval time.Duration
}

// resolvePolicy reads the policy flags with config precedence. Without an
// explicit name, strict is used when storage is configured and noop otherwise.
func resolvePolicy(c *cli.Context, cfg *config.Config, storage storageChoice) policyChoice {
	choice := policyChoice{
		name:          resolveString(c, "policy", configVal(cfg, func(c *config.Config) string { return c.Policy.Name })),
		maxChunks:     resolveInt(c, "buffer-chunks", configVal(cfg, func(c *config.Config) int { return c.Policy.BufferChunks })),
		maxBytes:      resolveInt64(c, "buffer-bytes", configVal(cfg, func(c *config.Config) int64 { return c.Policy.BufferBytes })),
		flushCount:    resolveInt(c, "flush-count", configVal(cfg, func(c *config.Config) int { return c.Policy.FlushCount })),
		flushInterval: resolveDuration(c, "flush-interval", configVal(cfg, func(c *config.Config) time.Duration { return c.Policy.FlushInterval.Duration })),
	}
	if choice.name == "" {
		if storage.enabled() {
			choice.name = "strict"
		} else {
			choice.name = "noop"
		}
	}
	return choice
}

// validatePolicyChoice checks the policy against the storage choice.
// Ignored tuning flags are reported on warn.
func validatePolicyChoice(choice policyChoice, storage storageChoice, warn io.Writer) error {
	switch choice.name {
	case "noop":
		return nil
	case "strict", "buffered", "streaming":
		if !storage.enabled() {
			return fmt.Errorf("%s policy requires --lode-backend", choice.name)
		}
	default:
		return fmt.Errorf("invalid policy: %s (must be strict, buffered, streaming or noop)", choice.name)
	}

	switch choice.name {
	case "strict":
		if choice.maxChunks > 0 || choice.maxBytes > 0 || choice.flushCount > 0 || choice.flushInterval > 0 {
			_, _ = fmt.Fprintln(warn, "Warning: buffer/flush flags ignored for strict policy")
		}
	case "buffered":
		if choice.flushCount > 0 || choice.flushInterval > 0 {
			_, _ = fmt.Fprintln(warn, "Warning: flush flags ignored for buffered policy")
		}
	case "streaming":
		if choice.flushCount <= 0 && choice.flushInterval <= 0 {
			return fmt.Errorf("streaming policy requires --flush-count > 0 or --flush-interval > 0")
		}
		if choice.maxChunks > 0 || choice.maxBytes > 0 {
			_, _ = fmt.Fprintln(warn, "Warning: buffer flags ignored for streaming policy")
		}
	}
	return nil
}

// buildPolicy creates the policy over sink. sink may be nil only for noop.
func buildPolicy(choice policyChoice, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch choice.name {
	case "noop":
		return policy.NewNoopPolicy(), nil
	case "strict":
		return policy.NewStrictPolicy(sink), nil
	case "buffered":
		cfg := policy.BufferedConfig{
			MaxBufferChunks: choice.maxChunks,
			MaxBufferBytes:  choice.maxBytes,
		}
		if cfg.MaxBufferChunks <= 0 && cfg.MaxBufferBytes <= 0 {
			cfg = policy.DefaultBufferedConfig()
		}
		cfg.Logger = logger
		return policy.NewBufferedPolicy(sink, cfg)
	case "streaming":
		return policy.NewStreamingPolicy(sink, policy.StreamingConfig{
			FlushCount:    choice.flushCount,
			FlushInterval: choice.flushInterval,
			Logger:        logger,
		})
	default:
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}
