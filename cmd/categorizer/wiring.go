package main

import (
	"context"

	"github.com/xaenox/ledger-categorizer/internal/classifier"
	"github.com/xaenox/ledger-categorizer/internal/storage"
	"github.com/xaenox/ledger-categorizer/pkg/config"
	"go.uber.org/zap"
)

// openStore returns the feedback store. Unless the in-memory store is
// requested, PostgreSQL is wrapped so that any failure moves the service
// onto the SQLite file (when configured) or memory.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) storage.Storage {
	if cfg.UseInMemory {
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage()
	}

	var primary storage.Storage
	pg, err := storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
		DSN:          cfg.DSN(),
		MaxOpenConns: cfg.MaxOpenConns,
	}, logger)
	if err != nil {
		logger.Error("PostgreSQL unavailable, starting on fallback storage", zap.Error(err))
	} else if err := pg.Migrate(ctx); err != nil {
		logger.Error("PostgreSQL migration failed, starting on fallback storage", zap.Error(err))
		_ = pg.Close()
	} else {
		logger.Info("Using PostgreSQL storage")
		primary = pg
	}

	return storage.NewFallbackStorage(primary, openFallback(ctx, cfg.FallbackPath, logger), logger)
}

func openFallback(ctx context.Context, path string, logger *zap.Logger) storage.Storage {
	if path == "" {
		return storage.NewMemoryStorage()
	}
	store, err := storage.NewSQLiteStorage(ctx, path)
	if err != nil {
		logger.Error("SQLite fallback unavailable, using memory",
			zap.String("path", path),
			zap.Error(err))
		return storage.NewMemoryStorage()
	}
	return store
}

func buildTaxonomy(cfg config.TaxonomyConfig) (classifier.Taxonomy, error) {
	examples := make([]classifier.Example, 0, len(cfg.Examples))
	for _, ex := range cfg.Examples {
		examples = append(examples, classifier.Example{Description: ex.Description, Category: ex.Category})
	}
	keywords := make([]classifier.KeywordRule, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		keywords = append(keywords, classifier.KeywordRule{Keyword: kw.Keyword, Category: kw.Category})
	}
	return classifier.NewTaxonomy(cfg.Categories, examples, keywords)
}

// buildPredictor returns the predictor and the OpenAI provider, which is nil
// when no API key is configured.
func buildPredictor(cfg *config.Config, store storage.Storage, logger *zap.Logger) (*classifier.Predictor, *classifier.OpenAIProvider, error) {
	taxonomy, err := buildTaxonomy(cfg.Taxonomy)
	if err != nil {
		return nil, nil, err
	}

	var provider classifier.Provider
	var openAI *classifier.OpenAIProvider
	if cfg.OpenAI.APIKey != "" {
		openAI = classifier.NewOpenAIProvider(classifier.OpenAIConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			MaxRetries:  cfg.OpenAI.MaxRetries,
		}, logger)
		provider = openAI
	} else {
		logger.Warn("OPENAI_API_KEY not set, using keyword classification only")
	}

	estimator := classifier.NewEstimator(store, cfg.Estimator.MinSamples, cfg.Estimator.ProviderWeight, logger)
	predictor := classifier.NewPredictor(provider, estimator, taxonomy, cfg.OpenAI.Timeout, logger)
	return predictor, openAI, nil
}
