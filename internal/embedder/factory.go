package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables consulted by NewFromEnv
const (
	EnvProvider     = "KBENGINE_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOpenAIBase   = "KBENGINE_EMBEDDING_BASE_URL"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	CacheSize int
}

// New creates a provider with explicit configuration.
func New(cfg Config) (Provider, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		}, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// NewFromEnv creates a provider based on environment variables.
// Priority:
//  1. KBENGINE_EMBEDDING_PROVIDER (openai, local)
//  2. OPENAI_API_KEY set: openai
//  3. Default: local
func NewFromEnv() (Provider, error) {
	cache := NewCache(10000)

	provider := strings.ToLower(os.Getenv(EnvProvider))
	apiKey := os.Getenv(EnvOpenAIAPIKey)

	if provider == "" && apiKey != "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL: os.Getenv(EnvOpenAIBase),
			APIKey:  apiKey,
		}, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
