// Package config loads the repowiki configuration: the TOML config file,
// platform tokens from the environment, and the optional per-repository
// filter file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the top-level application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Generator GeneratorConfig `toml:"generator"`
	Source    SourceConfig    `toml:"source"`
	Export    ExportConfig    `toml:"export"`
	Cache     CacheConfig     `toml:"cache"`
}

// ServerConfig points at the generation backend.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
}

// GeneratorConfig holds model selection and generation behavior.
type GeneratorConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	Comprehensive  bool   `toml:"comprehensive"`
	MaxConcurrency int    `toml:"max_concurrency"`
}

// SourceConfig holds repository adapter settings.
type SourceConfig struct {
	BranchCandidates  []string `toml:"branch_candidates"`
	PageSize          int      `toml:"page_size"`
	BitbucketBaseURL  string   `toml:"bitbucket_base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// ExportConfig holds artifact output settings.
type ExportConfig struct {
	OutputDir string `toml:"output_dir"`
}

// CacheConfig selects the cache gateway.
type CacheConfig struct {
	// Mode is "remote" (backend cache service), "local" (SQLite), or
	// "off".
	Mode string `toml:"mode"`
	// Path is the SQLite database path for local mode.
	Path string `toml:"path"`
	// MemoryBytes bounds the in-process layer fronting the gateway.
	MemoryBytes int64 `toml:"memory_bytes"`
}

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:8001",
		},
		Generator: GeneratorConfig{
			Provider:       "google",
			Model:          "gemini-2.5-flash",
			Language:       "en",
			MaxConcurrency: 1,
		},
		Source: SourceConfig{
			BranchCandidates:  []string{"main", "master"},
			PageSize:          100,
			BitbucketBaseURL:  "https://api.bitbucket.org",
			RequestsPerSecond: 5,
		},
		Export: ExportConfig{
			OutputDir: ".",
		},
		Cache: CacheConfig{
			Mode:        "remote",
			Path:        defaultCachePath(),
			MemoryBytes: 32 << 20,
		},
	}
}

// Load reads the config file at path, layered over defaults. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "repowiki.toml"
	}
	return filepath.Join(home, ".config", "repowiki", "config.toml")
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "repowiki-cache.db"
	}
	return filepath.Join(home, ".cache", "repowiki", "cache.db")
}
