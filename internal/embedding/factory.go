package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/pdfqa/internal/config"
)

// New builds the configured embedder, wrapped in an LRU cache when cache_size > 0.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case config.ProviderHashing, "":
		e = NewHashingEmbedder(cfg.Dimensions)
	case config.ProviderONNX:
		e, err = NewONNXEmbedder(ONNXOptions{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			Dimensions:  cfg.Dimensions,
			MaxTokens:   cfg.MaxTokens,
		})
	case config.ProviderOpenAI:
		apiKey := os.Getenv(cfg.OpenAI.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("%s environment variable not set", cfg.OpenAI.APIKeyEnv)
		}
		e, err = NewOpenAIEmbedder(OpenAIOptions{
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			APIKey:     apiKey,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.OpenAI.BatchSize,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithCache(e, cfg.CacheSize), nil
}
