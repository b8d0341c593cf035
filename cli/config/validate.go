package config

import (
	"fmt"
	"slices"
)

// Accepted values for the enumerated keys.
var (
	Modes           = []string{"line", "fragment"}
	PolicyNames     = []string{"strict", "buffered", "streaming", "noop"}
	StorageBackends = []string{"fs", "s3", "memory"}
	AdapterTypes    = []string{"webhook", "redis"}
)

// Validate checks enumerated keys and numeric ranges. Empty values are
// allowed; they leave the flag default in place.
func (c *Config) Validate() error {
	if err := oneOf("mode", c.Mode, Modes); err != nil {
		return err
	}
	if err := oneOf("policy.name", c.Policy.Name, PolicyNames); err != nil {
		return err
	}
	if err := oneOf("storage.backend", c.Storage.Backend, StorageBackends); err != nil {
		return err
	}
	if err := oneOf("adapter.type", c.Adapter.Type, AdapterTypes); err != nil {
		return err
	}
	if c.FragmentSize < 0 {
		return fmt.Errorf("fragment_size must be >= 0, got %d", c.FragmentSize)
	}
	if c.Policy.BufferChunks < 0 || c.Policy.BufferBytes < 0 || c.Policy.FlushCount < 0 {
		return fmt.Errorf("policy limits must be >= 0")
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries)
	}
	return nil
}

func oneOf(key, value string, allowed []string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("invalid %s: %q (must be one of %v)", key, value, allowed)
}
