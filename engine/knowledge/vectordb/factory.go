package vectordb

import (
	"fmt"

	"github.com/Druk83/TrainingGround/pkg/config"
)

// New builds the store selected by the vector configuration.
func New(cfg *config.VectorConfig) (Store, error) {
	switch Provider(cfg.Provider) {
	case ProviderMemory:
		return NewMemoryStore(cfg.Dimension), nil
	case ProviderQdrant, "":
		return NewQdrantStore(QdrantConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
			Dimension:  cfg.Dimension,
			Timeout:    cfg.Timeout,
			Retries:    cfg.Retries,
		})
	default:
		return nil, fmt.Errorf("vectordb: unsupported provider %q", cfg.Provider)
	}
}
