package classifier

import (
	"context"
	"math"

	"github.com/xaenox/ledger-categorizer/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultMinSamples     = 5
	DefaultProviderWeight = 0.6
)

// AccuracySource supplies historical accuracy per predicted category.
type AccuracySource interface {
	AccuracyFor(ctx context.Context, category string) (models.CategoryAccuracy, error)
}

// Estimator blends a provider's self-reported confidence with how often
// past predictions of the same category were confirmed.
type Estimator struct {
	source         AccuracySource
	minSamples     int
	providerWeight float64
	logger         *zap.Logger
}

func NewEstimator(source AccuracySource, minSamples int, providerWeight float64, logger *zap.Logger) *Estimator {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Estimator{
		source:         source,
		minSamples:     minSamples,
		providerWeight: clamp01(providerWeight),
		logger:         logger,
	}
}

// Blend returns providerConfidence unchanged when history for category is
// thin or unavailable, and the weighted mix of both signals otherwise.
func (e *Estimator) Blend(ctx context.Context, providerConfidence float64, category string) float64 {
	providerConfidence = clamp01(providerConfidence)
	if e == nil || e.source == nil {
		return providerConfidence
	}

	stat, err := e.source.AccuracyFor(ctx, category)
	if err != nil {
		e.logger.Warn("Historical accuracy unavailable",
			zap.String("category", category),
			zap.Error(err))
		return providerConfidence
	}
	// Zero samples means "no history", never "always wrong"
	if stat.Samples < e.minSamples {
		return providerConfidence
	}

	blended := e.providerWeight*providerConfidence + (1-e.providerWeight)*stat.Accuracy
	return clamp01(blended)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
