package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragforge/kbengine/pkg/types"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"

	// Dimensions
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100
)

// OpenAIProvider implements Provider against any OpenAI-compatible
// embeddings endpoint (OpenAI itself, or local servers such as Ollama and
// llama.cpp exposing the same API).
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible API.
func NewOpenAIProvider(cfg OpenAIConfig, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider: missing API key: %w", types.ErrModelUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = OpenAIDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &OpenAIProvider{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}, nil
}

func (p *OpenAIProvider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, types.ErrEmptyInput
	}

	hash := ComputeHash(text)
	if p.cache != nil {
		if v, ok := p.cache.Get(hash); ok {
			return v, nil
		}
	}

	vectors, err := p.callAPI(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(hash, vectors[0])
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds limit %d", len(texts), MaxBatchSize)
	}

	out := make([][]float32, len(texts))

	// Serve cached entries and collect the rest for one API call.
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if p.cache != nil {
			if v, ok := p.cache.Get(ComputeHash(text)); ok {
				out[i] = v
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		vectors, err := p.callAPI(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			out[missingIdx[j]] = v
			if p.cache != nil {
				p.cache.Set(ComputeHash(missing[j]), v)
			}
		}
	}

	return out, nil
}

func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// embeddingRequest is the OpenAI-compatible request body
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI-compatible response body
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) callAPI(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Input: inputs})
	if err != nil {
		return nil, err
	}

	return retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w: %w", types.ErrModelUnavailable, err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("embedding API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}

		var parsed embeddingResponse
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse embedding response: %w", err)
		}
		if parsed.Error != nil {
			return nil, fmt.Errorf("embedding API error: %s", parsed.Error.Message)
		}
		if len(parsed.Data) != len(inputs) {
			return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(parsed.Data), len(inputs))
		}

		vectors := make([][]float32, len(inputs))
		for _, d := range parsed.Data {
			if d.Index < 0 || d.Index >= len(vectors) {
				return nil, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
			}
			if len(d.Embedding) != p.dimension {
				return nil, fmt.Errorf("embedding has dimension %d, want %d: %w", len(d.Embedding), p.dimension, types.ErrInvalidDimension)
			}
			vectors[d.Index] = d.Embedding
		}
		return vectors, nil
	})
}

// LocalProvider is a deterministic hash-based embedder. It produces stable,
// dimension-correct vectors without any model, which is enough for offline
// smoke testing of the retrieval pipeline.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a new local embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) Available(ctx context.Context) bool {
	return true
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Name() string {
	return ProviderLocal
}

func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, types.ErrEmptyInput
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if v, ok := l.cache.Get(hash); ok {
			return v, nil
		}
	}

	// Stretch the SHA-256 digest across the full dimension by re-hashing
	// with a counter, so distinct texts get distinct directions.
	vector := make([]float32, LocalDimension)
	seed := []byte(text)
	for i := 0; i < LocalDimension; i += sha256.Size {
		block := sha256.Sum256(append(seed, byte(i/sha256.Size)))
		for j := 0; j < sha256.Size && i+j < LocalDimension; j++ {
			vector[i+j] = (float32(block[j]) - 127.5) / 127.5
		}
	}

	if l.cache != nil {
		l.cache.Set(hash, vector)
	}
	return vector, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (l *LocalProvider) Close() error {
	return nil
}
