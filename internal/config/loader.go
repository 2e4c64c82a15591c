package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "CODEINDEX_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nestedSections lists "section_child" prefixes whose keys live one level
// deeper than the section, e.g. CODEINDEX_VECTORDB_CHROMEM_PATH.
var nestedSections = map[string][]string{
	"vectordb": {"chromem"},
}

// DefaultPath returns ~/.config/codeindex/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "codeindex", "config.yaml"), nil
}

// Load builds the configuration from defaults, the YAML file at path and
// CODEINDEX_* environment variables.
//
// An empty path selects DefaultPath. A missing file is not an error when the
// path was defaulted; an explicit path must exist.
//
// Environment variables map onto keys by stripping the prefix, lower-casing
// and splitting section from field at the first underscore:
//
//	CODEINDEX_VECTORDB_API_KEY      -> vectordb.api_key
//	CODEINDEX_SERVER_PORT           -> server.port
//	CODEINDEX_VECTORDB_CHROMEM_PATH -> vectordb.chromem.path
//
// The file must not be readable by group or others and must be under 1MB.
func Load(path string) (*Config, error) {
	k, err := defaults()
	if err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	content, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.VectorDB.Provider = strings.ToLower(cfg.VectorDB.Provider)
	cfg.Embeddings.Provider = strings.ToLower(cfg.Embeddings.Provider)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// defaults returns a koanf instance holding defaultYAML.
func defaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaultYAML)), yaml.Parser()); err != nil {
		return nil, err
	}
	return k, nil
}

// envKey maps an environment variable name to a koanf key.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	for _, child := range nestedSections[section] {
		if rest, ok := strings.CutPrefix(field, child+"_"); ok {
			return section + "." + child + "." + rest
		}
	}
	return section + "." + field
}

// readConfigFile reads path after checking permissions and size on the
// opened descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", info.Name())
	}
	// Windows has no comparable permission bits.
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// EnsureConfigDir creates ~/.config/codeindex with 0700 permissions.
func EnsureConfigDir() error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}
