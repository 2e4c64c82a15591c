// Package config provides configuration loading for codeindex.
//
// Values come from built-in defaults, an optional YAML file and CODEINDEX_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds the complete codeindex configuration.
type Config struct {
	VectorDB   VectorDBConfig   `koanf:"vectordb"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Indexer    IndexerConfig    `koanf:"indexer"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// VectorDBConfig selects and configures the vector database backend.
type VectorDBConfig struct {
	// Provider is rest, grpc or chromem.
	Provider string `koanf:"provider"`

	// URL is the full REST endpoint. When set, scheme/host/port are ignored.
	URL    string `koanf:"url"`
	Scheme string `koanf:"scheme"`
	Host   string `koanf:"host"`
	// Port defaults per provider: 6333 for rest, 6334 for grpc.
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`

	// Timeout bounds each REST request. Zero disables the client timeout.
	Timeout        Duration `koanf:"timeout"`
	BatchSize      int      `koanf:"batch_size"`
	MaxMessageSize int      `koanf:"max_message_size"`

	Chromem ChromemConfig `koanf:"chromem"`
}

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// EmbeddingsConfig configures the embedding provider. Empty base_url and
// model select the provider's own defaults; dimension 0 derives it from the
// model name.
type EmbeddingsConfig struct {
	// Provider is tei or openai.
	Provider  string   `koanf:"provider"`
	BaseURL   string   `koanf:"base_url"`
	Model     string   `koanf:"model"`
	APIKey    Secret   `koanf:"api_key"`
	Dimension int      `koanf:"dimension"`
	Timeout   Duration `koanf:"timeout"`

	// RequestsPerSecond throttles embedding requests; 0 disables the limit.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// IndexerConfig controls how source trees are chunked.
type IndexerConfig struct {
	Include      []string `koanf:"include"`
	Exclude      []string `koanf:"exclude"`
	ChunkLines   int      `koanf:"chunk_lines"`
	ChunkOverlap int      `koanf:"chunk_overlap"`
	MaxFileBytes int64    `koanf:"max_file_bytes"`
	// IgnoreFiles are read from the index root; empty disables them.
	IgnoreFiles []string `koanf:"ignore_files"`

	// RedactSecrets replaces credentials with markers before embedding.
	RedactSecrets    bool   `koanf:"redact_secrets"`
	SecretsAllowlist string `koanf:"secrets_allowlist"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig is the subset of logging settings exposed in the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// defaultYAML holds the built-in defaults. It is the first layer Load merges,
// so slices from the file or environment replace these rather than extend them.
const defaultYAML = `
vectordb:
  provider: rest
  host: localhost
  timeout: 30s
  chromem:
    path: ~/.local/share/codeindex/vectors
    compress: true
embeddings:
  provider: tei
  timeout: 60s
indexer:
  include: ["**/*"]
  exclude: ["**/.git/**", "**/node_modules/**", "**/vendor/**"]
  chunk_lines: 60
  chunk_overlap: 10
  max_file_bytes: 1048576
  ignore_files: [".gitignore", ".codeindexignore"]
  redact_secrets: true
server:
  host: 127.0.0.1
  port: 9090
  shutdown_timeout: 10s
logging:
  level: info
  format: json
telemetry:
  enabled: false
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  service_name: codeindex
  sample_rate: 1.0
`

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	k, err := defaults()
	if err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for values the components would reject.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.VectorDB.Provider) {
	case "rest", "grpc", "chromem":
	default:
		errs = append(errs, fmt.Errorf("vectordb.provider must be rest, grpc or chromem, got %q", c.VectorDB.Provider))
	}
	if c.VectorDB.Port < 0 || c.VectorDB.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid vectordb.port: %d (must be 0-65535)", c.VectorDB.Port))
	}
	if c.VectorDB.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("vectordb.batch_size cannot be negative"))
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "tei", "openai":
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be tei or openai, got %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Dimension < 0 {
		errs = append(errs, fmt.Errorf("embeddings.dimension cannot be negative, got %d", c.Embeddings.Dimension))
	}
	if c.Embeddings.RequestsPerSecond < 0 || c.Embeddings.Burst < 0 {
		errs = append(errs, errors.New("embeddings.requests_per_second and embeddings.burst cannot be negative"))
	}

	if c.Indexer.ChunkLines < 1 {
		errs = append(errs, fmt.Errorf("indexer.chunk_lines must be positive, got %d", c.Indexer.ChunkLines))
	}
	if c.Indexer.ChunkOverlap < 0 || c.Indexer.ChunkOverlap >= c.Indexer.ChunkLines {
		errs = append(errs, fmt.Errorf("indexer.chunk_overlap must be in [0, chunk_lines), got %d", c.Indexer.ChunkOverlap))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint required when telemetry is enabled"))
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http/protobuf, got %q", c.Telemetry.Protocol))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %v", c.Telemetry.SampleRate))
		}
	}

	return errors.Join(errs...)
}
