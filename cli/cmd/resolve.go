package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/cli/config"
)

// Flag precedence for decode: an explicitly set flag wins, then a non-zero
// config value, then the flag default.

// configVal reads a value from cfg, returning the zero value when cfg is nil.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

func resolveInt64(c *cli.Context, name string, cfgVal int64) int64 {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int64(name)
	}
	return cfgVal
}

// resolveBool takes a pointer so an explicit false in the config file
// still overrides a true default.
func resolveBool(c *cli.Context, name string, cfgVal *bool) bool {
	if c.IsSet(name) || cfgVal == nil {
		return c.Bool(name)
	}
	return *cfgVal
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}
