package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Druk83/TrainingGround/pkg/config"
)

type Provider string

const (
	ProviderHash   Provider = "hash"
	ProviderOpenAI Provider = "openai"
)

const defaultBatchSize = 32

// Embedder turns rule text and retrieval queries into vectors of a fixed dimension.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

type Config struct {
	Provider  Provider
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	BatchSize int
	CacheSize int
}

// FromAppConfig maps the embedding and vector settings onto an embedder config.
func FromAppConfig(cfg *config.Config) *Config {
	return &Config{
		Provider:  Provider(cfg.Embedding.Provider),
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Vector.Dimension,
		BatchSize: cfg.Vector.BatchSize,
		CacheSize: cfg.Embedding.CacheSize,
	}
}

// Adapter wraps a langchaingo embedder with a dimension check and an LRU cache.
type Adapter struct {
	provider  Provider
	dimension int
	impl      embeddings.Embedder
	cacheMu   sync.Mutex
	cache     *lru.Cache[string, []float32]
}

var errInvalidDimension = errors.New("embedder dimension must be greater than zero")

// New constructs the embedder selected by cfg.Provider.
func New(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if cfg.Dimension <= 0 {
		return nil, errInvalidDimension
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}
	impl, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batch), embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("embedder %q: construct embedder: %w", cfg.Provider, err)
	}
	adapter, err := Wrap(cfg.Provider, cfg.Dimension, impl)
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		if err := adapter.EnableCache(cfg.CacheSize); err != nil {
			return nil, err
		}
	}
	return adapter, nil
}

// Wrap constructs an adapter around an existing langchaingo embedder.
func Wrap(provider Provider, dimension int, impl embeddings.Embedder) (*Adapter, error) {
	if impl == nil {
		return nil, fmt.Errorf("embedder %q: implementation is required", provider)
	}
	if dimension <= 0 {
		return nil, errInvalidDimension
	}
	return &Adapter{provider: provider, dimension: dimension, impl: impl}, nil
}

func buildClient(cfg *Config) (embeddings.EmbedderClient, error) {
	switch cfg.Provider {
	case ProviderHash, "":
		return NewHashClient(cfg.Dimension), nil
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("embedder %q: initialize openai client: %w", cfg.Provider, err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("embedder: provider %q is not supported", cfg.Provider)
	}
}

func (a *Adapter) Dimension() int {
	return a.dimension
}

// EnableCache initializes an LRU cache for query embeddings.
func (a *Adapter) EnableCache(size int) error {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return fmt.Errorf("embedder %q: init cache: %w", a.provider, err)
	}
	a.cacheMu.Lock()
	a.cache = cache
	a.cacheMu.Unlock()
	return nil
}

func (a *Adapter) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := a.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, a.withContext(err)
	}
	if len(vectors) != len(texts) {
		return nil, a.withContext(fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts)))
	}
	for i := range vectors {
		if err := a.checkDimension(vectors[i]); err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vector, ok := a.lookupCache(key); ok {
		return vector, nil
	}
	vector, err := a.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, a.withContext(err)
	}
	if err := a.checkDimension(vector); err != nil {
		return nil, err
	}
	a.storeCache(key, vector)
	return cloneVector(vector), nil
}

func (a *Adapter) checkDimension(vector []float32) error {
	if len(vector) != a.dimension {
		return a.withContext(fmt.Errorf("vector dimension %d does not match configured %d", len(vector), a.dimension))
	}
	return nil
}

func (a *Adapter) lookupCache(key string) ([]float32, bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cache == nil {
		return nil, false
	}
	value, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cloneVector(value), true
}

func (a *Adapter) storeCache(key string, vector []float32) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	if a.cache != nil && len(vector) > 0 {
		a.cache.Add(key, cloneVector(vector))
	}
}

func (a *Adapter) withContext(err error) error {
	return fmt.Errorf("embedder %q: %w", a.provider, err)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
