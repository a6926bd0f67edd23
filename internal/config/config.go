// Package config loads engine configuration from a YAML file, falling back
// to defaults when no file is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheConfig configures the per-container query cache.
type CacheConfig struct {
	Capacity            int     `yaml:"capacity"`
	TTLSecs             int     `yaml:"ttl_secs"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// SearchConfig configures hybrid ranking and diversification.
type SearchConfig struct {
	RRFConstant         float64 `yaml:"rrf_constant"`
	CandidateMultiplier int     `yaml:"candidate_multiplier"`
	MinCandidates       int     `yaml:"min_candidates"`
	MMRLambda           float64 `yaml:"mmr_lambda"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider    string `yaml:"provider"` // openai or local
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	CacheSize   int    `yaml:"cache_size"`
}

// Config is the root engine configuration.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
	Embedder EmbedderConfig `yaml:"embedder"`
}

// Default returns the built-in configuration. The data directory defaults to
// ~/.kbengine.
func Default() *Config {
	dataDir := ".kbengine"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".kbengine")
	}

	return &Config{
		DataDir: dataDir,
		Cache: CacheConfig{
			Capacity:            20,
			TTLSecs:             300,
			SimilarityThreshold: 0.95,
		},
		Search: SearchConfig{
			RRFConstant:         60,
			CandidateMultiplier: 5,
			MinCandidates:       50,
			MMRLambda:           0.7,
		},
		Embedder: EmbedderConfig{
			Provider:    "local",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 30,
			CacheSize:   10000,
		},
	}
}

// Load reads configuration from path. An empty path tries
// <data_dir>/config.yaml; a missing file yields the defaults. Explicitly
// configured values override defaults field by field.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configured values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir cannot be empty")
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return errors.New("cache.similarity_threshold must be in [0,1]")
	}
	if c.Search.MMRLambda < 0 || c.Search.MMRLambda > 1 {
		return errors.New("search.mmr_lambda must be in [0,1]")
	}
	if c.Search.RRFConstant < 0 {
		return errors.New("search.rrf_constant must be non-negative")
	}
	return nil
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSecs) * time.Second
}

// EmbedderTimeout returns the embedder request timeout as a duration.
func (c *Config) EmbedderTimeout() time.Duration {
	return time.Duration(c.Embedder.TimeoutSecs) * time.Second
}

// APIKey resolves the embedder API key from the configured environment
// variable.
func (c *Config) APIKey() string {
	if c.Embedder.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedder.APIKeyEnv)
}
