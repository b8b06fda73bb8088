// Package config loads assetcache configuration from TOML files and the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigName is the file looked up in the working directory when no path is given.
const DefaultConfigName = "assetcache.toml"

//go:embed sample_config.toml
var sampleConfig string

// Corpus selects the storage backend for materialized assets.
type Corpus struct {
	Type   string `toml:"type"`   // local, gcs or memory
	Dir    string `toml:"dir"`    // local
	Bucket string `toml:"bucket"` // gcs
	Prefix string `toml:"prefix"` // gcs
}

// Notion contains content source credentials.
type Notion struct {
	Token             string  `toml:"token"`
	DatabaseID        string  `toml:"database_id"`
	BaseURL           string  `toml:"base_url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Pipeline controls worker pools and request limits.
type Pipeline struct {
	Workers        int `toml:"workers"`
	PageWorkers    int `toml:"page_workers"`
	RequestTimeout int `toml:"request_timeout"` // seconds, per asset download
}

// Logging controls log level and output format.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Debug       bool     `toml:"debug"`
	MetricsFile string   `toml:"metrics_file"`
	Corpus      Corpus   `toml:"corpus"`
	Notion      Notion   `toml:"notion"`
	Pipeline    Pipeline `toml:"pipeline"`
	Logging     Logging  `toml:"logging"`
}

// Timeout returns the per-download timeout, or zero if unlimited.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Pipeline.RequestTimeout) * time.Second
}

// Load locates, parses and validates a configuration file. A missing file is not an error:
// defaults and environment overrides are used instead.
// It returns the config, the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		f, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()

		dec := toml.NewDecoder(f)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// Parse decodes a configuration document without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = DefaultConfigName
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}
	st, err := os.Stat(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		return expanded, false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if st.IsDir() {
		return resolveConfigPath(filepath.Join(expanded, DefaultConfigName))
	}
	return expanded, true, nil
}

// ExpandPath resolves a leading ~ and makes the path absolute.
func ExpandPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	if strings.HasPrefix(p, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if p == "~" {
			p = home
		} else if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
			p = filepath.Join(home, p[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", p, err)
	}
	return abs, nil
}

// Sample returns the annotated sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path. It refuses to overwrite an existing file.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err = f.WriteString(sampleConfig); err != nil {
		f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}
