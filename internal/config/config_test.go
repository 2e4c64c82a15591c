package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.VectorDB.Provider != "rest" {
		t.Errorf("VectorDB.Provider = %q, want rest", cfg.VectorDB.Provider)
	}
	if cfg.VectorDB.Timeout.Duration() != 30*time.Second {
		t.Errorf("VectorDB.Timeout = %v, want 30s", cfg.VectorDB.Timeout)
	}
	if !cfg.VectorDB.Chromem.Compress {
		t.Error("VectorDB.Chromem.Compress = false, want true")
	}
	if cfg.Embeddings.Provider != "tei" || cfg.Embeddings.BaseURL != "" || cfg.Embeddings.Dimension != 0 {
		t.Errorf("Embeddings = %+v, want tei with provider defaults", cfg.Embeddings)
	}
	if got := len(cfg.Indexer.Exclude); got != 3 {
		t.Errorf("len(Indexer.Exclude) = %d, want 3", got)
	}
	if got := cfg.Indexer.IgnoreFiles; len(got) != 2 || got[0] != ".gitignore" {
		t.Errorf("Indexer.IgnoreFiles = %v, want [.gitignore .codeindexignore]", got)
	}
	if !cfg.Indexer.RedactSecrets {
		t.Error("Indexer.RedactSecrets = false, want true")
	}
	if cfg.Indexer.MaxFileBytes != 1<<20 {
		t.Errorf("Indexer.MaxFileBytes = %d, want 1MiB", cfg.Indexer.MaxFileBytes)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Telemetry.Enabled {
		t.Error("Telemetry.Enabled = true, want false")
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Telemetry.SampleRate = %v, want 1.0", cfg.Telemetry.SampleRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "chromem provider", mutate: func(c *Config) { c.VectorDB.Provider = "chromem" }},
		{
			name:    "unknown vectordb provider",
			mutate:  func(c *Config) { c.VectorDB.Provider = "milvus" },
			wantErr: "vectordb.provider",
		},
		{
			name:    "vectordb port out of range",
			mutate:  func(c *Config) { c.VectorDB.Port = 70000 },
			wantErr: "vectordb.port",
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.VectorDB.BatchSize = -1 },
			wantErr: "batch_size",
		},
		{
			name:    "unknown embeddings provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "fastembed" },
			wantErr: "embeddings.provider",
		},
		{
			name:    "negative dimension",
			mutate:  func(c *Config) { c.Embeddings.Dimension = -1 },
			wantErr: "embeddings.dimension",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.Embeddings.RequestsPerSecond = -1 },
			wantErr: "embeddings.requests_per_second",
		},
		{
			name:    "overlap not below chunk size",
			mutate:  func(c *Config) { c.Indexer.ChunkOverlap = c.Indexer.ChunkLines },
			wantErr: "chunk_overlap",
		},
		{
			name:    "server port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: "shutdown_timeout",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
		{
			name: "telemetry fields ignored when disabled",
			mutate: func(c *Config) {
				c.Telemetry.Protocol = "carrier-pigeon"
				c.Telemetry.SampleRate = 5
			},
		},
		{
			name: "telemetry protocol checked when enabled",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "carrier-pigeon"
			},
			wantErr: "telemetry.protocol",
		},
		{
			name: "telemetry sample rate checked when enabled",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.SampleRate = 1.5
			},
			wantErr: "sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Embeddings.Dimension = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"server.port", "embeddings.dimension"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, missing %q", err, want)
		}
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("hunter2")

	for name, got := range map[string]string{
		"String":   s.String(),
		"Sprintf":  fmt.Sprintf("%v", s),
		"GoString": fmt.Sprintf("%#v", s),
	} {
		if strings.Contains(got, "hunter2") {
			t.Errorf("%s leaked the secret: %q", name, got)
		}
	}

	b, err := json.Marshal(struct{ Key Secret }{s})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(b) != `{"Key":"[REDACTED]"}` {
		t.Errorf("json.Marshal() = %s", b)
	}

	if s.Value() != "hunter2" || !s.IsSet() {
		t.Errorf("Value() = %q, IsSet() = %v", s.Value(), s.IsSet())
	}
	if Secret("").String() != "" || Secret("").IsSet() {
		t.Error("empty Secret should render empty and report unset")
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want 1m30s", d.Duration())
	}
	if err := d.UnmarshalText([]byte("-5s")); err == nil {
		t.Error("UnmarshalText(-5s) = nil, want error")
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText(soon) = nil, want error")
	}
}
