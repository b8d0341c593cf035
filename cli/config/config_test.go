package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `source: nextjs-app
dev: true
mode: fragment
fragment_size: 8192
log_level: debug

storage:
  dataset: flight
  backend: s3
  path: my-bucket/prefix
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true

policy:
  name: buffered
  buffer_chunks: 1000
  buffer_bytes: 10485760
  flush_count: 50
  flush_interval: 2s

adapter:
  type: webhook
  url: https://hooks.example.com/flight
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "source", cfg.Source, "nextjs-app")
	assertEqual(t, "mode", cfg.Mode, "fragment")
	assertEqual(t, "log_level", cfg.LogLevel, "debug")
	if cfg.Dev == nil || !*cfg.Dev {
		t.Error("expected dev=true")
	}
	if cfg.FragmentSize != 8192 {
		t.Errorf("fragment_size = %d, want 8192", cfg.FragmentSize)
	}

	assertEqual(t, "storage.dataset", cfg.Storage.Dataset, "flight")
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "my-bucket/prefix")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}

	assertEqual(t, "policy.name", cfg.Policy.Name, "buffered")
	if cfg.Policy.BufferChunks != 1000 || cfg.Policy.BufferBytes != 10485760 || cfg.Policy.FlushCount != 50 {
		t.Errorf("policy = %+v", cfg.Policy)
	}
	if cfg.Policy.FlushInterval.Duration != 2*time.Second {
		t.Errorf("flush_interval = %v, want 2s", cfg.Policy.FlushInterval.Duration)
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/flight")
	assertEqual(t, "adapter.headers", cfg.Adapter.Headers["Authorization"], "Bearer token123")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter.timeout = %v, want 10s", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Errorf("adapter.retries = %v, want 3", cfg.Adapter.Retries)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_Emptyish(t *testing.T) {
	tests := map[string]string{
		"empty":           "",
		"whitespace only": "   \n  \n  \n",
		"comments only":   "# This is a comment\n# Another comment\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Source != "" || cfg.Dev != nil || cfg.Adapter.Retries != nil {
				t.Errorf("expected zero config, got %+v", cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeTemp(t, "{{invalid yaml")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FLIGHT_SOURCE", "expanded-source")
	cfg, err := Load(writeTemp(t, "source: ${FLIGHT_SOURCE}\nstorage:\n  path: ${FLIGHT_DATA:-./data}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "source", cfg.Source, "expanded-source")
	assertEqual(t, "storage.path", cfg.Storage.Path, "./data")
}

func TestLoad_UnknownKeysRejected(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		key  string
	}{
		{"top level", "source: s\nbogus_key: should_fail\n", "bogus_key"},
		{"nested", "storage:\n  backend: fs\n  unknown_field: bad\n", "unknown_field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error = %v, want mention of %s", err, tt.key)
			}
		})
	}
}

func TestLoad_RetriesZeroDistinctFromNil(t *testing.T) {
	cfg, err := Load(writeTemp(t, "adapter:\n  type: redis\n  retries: 0\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 0 {
		t.Errorf("retries = %v, want explicit 0", cfg.Adapter.Retries)
	}

	cfg, err = Load(writeTemp(t, "adapter:\n  type: redis\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Adapter.Retries != nil {
		t.Errorf("retries = %v, want nil when omitted", *cfg.Adapter.Retries)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{`"30s"`, 30 * time.Second, false},
		{`"5m30s"`, 5*time.Minute + 30*time.Second, false},
		{`""`, 0, false},
		{`"soon"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg, err := Load(writeTemp(t, "adapter:\n  timeout: "+tt.value+"\n"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.Adapter.Timeout.Duration != tt.want {
				t.Errorf("timeout = %v, want %v", cfg.Adapter.Timeout.Duration, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	negative := -1
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero", Config{}, ""},
		{"bad mode", Config{Mode: "chunked"}, "mode"},
		{"bad policy", Config{Policy: PolicyConfig{Name: "lossy"}}, "policy.name"},
		{"bad backend", Config{Storage: StorageConfig{Backend: "gcs"}}, "storage.backend"},
		{"bad adapter", Config{Adapter: AdapterConfig{Type: "kafka"}}, "adapter.type"},
		{"negative fragment size", Config{FragmentSize: -1}, "fragment_size"},
		{"negative buffer", Config{Policy: PolicyConfig{BufferChunks: -5}}, "policy limits"},
		{"negative retries", Config{Adapter: AdapterConfig{Retries: &negative}}, "adapter.retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

// writeTemp writes content to a temp file and returns the path.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flight.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
