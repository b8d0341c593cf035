package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flight/adapter"
	"github.com/pithecene-io/flight/adapter/redis"
	"github.com/pithecene-io/flight/adapter/webhook"
	"github.com/pithecene-io/flight/cli/config"
)

// adapterChoice holds parsed completion adapter configuration.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// parseAdapterConfigWithPrecedence builds the adapter choice for
// adapterType from flags and config. Returns nil when adapterType is empty.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterChoice, error) {
	if adapterType == "" {
		return nil, nil
	}

	choice := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
	}

	switch adapterType {
	case "webhook":
		choice.retries = webhook.DefaultRetries
		if choice.channel != "" {
			return nil, fmt.Errorf("--adapter-channel is only valid for the redis adapter")
		}
	case "redis":
		choice.retries = redis.DefaultRetries
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", adapterType)
	}

	if choice.url == "" {
		return nil, fmt.Errorf("--adapter-url is required when --adapter is set")
	}

	if c.IsSet("adapter-retries") {
		choice.retries = c.Int("adapter-retries")
	} else if r := configVal(cfg, func(c *config.Config) *int { return c.Adapter.Retries }); r != nil {
		choice.retries = *r
	}
	if choice.retries < 0 {
		return nil, fmt.Errorf("--adapter-retries must be >= 0, got %d", choice.retries)
	}

	headers := make(map[string]string)
	for k, v := range configVal(cfg, func(c *config.Config) map[string]string { return c.Adapter.Headers }) {
		headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (want Key=Value)", h)
		}
		headers[strings.TrimSpace(k)] = v
	}
	if len(headers) > 0 {
		if adapterType != "webhook" {
			return nil, fmt.Errorf("--adapter-header is only valid for the webhook adapter")
		}
		choice.headers = headers
	}

	return choice, nil
}

// buildAdapter creates the completion adapter.
func buildAdapter(choice *adapterChoice) (adapter.Adapter, error) {
	switch choice.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s", choice.adapterType)
	}
}
