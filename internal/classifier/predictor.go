package classifier

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/ledger-categorizer/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultProviderTimeout = 30 * time.Second

	// invalidCategoryCeiling caps confidence when the provider named a category outside the set.
	invalidCategoryCeiling = 0.3
)

// Provider sends a prompt to a language model and returns the raw reply text.
type Provider interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Predictor turns a transaction description into a category. It never fails:
// every provider problem degrades to the keyword table.
type Predictor struct {
	provider  Provider
	estimator *Estimator
	keywords  *KeywordClassifier
	taxonomy  Taxonomy
	timeout   time.Duration
	logger    *zap.Logger
}

// NewPredictor wires a predictor. A nil provider means keyword matching only.
func NewPredictor(provider Provider, estimator *Estimator, taxonomy Taxonomy, timeout time.Duration, logger *zap.Logger) *Predictor {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Predictor{
		provider:  provider,
		estimator: estimator,
		keywords:  NewKeywordClassifier(taxonomy),
		taxonomy:  taxonomy,
		timeout:   timeout,
		logger:    logger,
	}
}

// Taxonomy returns the category set the predictor classifies into.
func (p *Predictor) Taxonomy() Taxonomy {
	return p.taxonomy
}

// Predict categorizes description.
func (p *Predictor) Predict(ctx context.Context, description string) models.PredictionResult {
	predictionID := uuid.New().String()

	description = strings.TrimSpace(description)
	if description == "" {
		return models.PredictionResult{
			PredictionID: predictionID,
			Category:     models.Uncategorized,
			Confidence:   0,
			Source:       models.SourceEmpty,
		}
	}

	result, err := p.predictWithProvider(ctx, description)
	if err != nil {
		p.logger.Warn("Provider categorization failed, using keyword fallback",
			zap.String("prediction_id", predictionID),
			zap.Error(err))
		result = p.fallbackClassification(description)
	}
	result.PredictionID = predictionID

	switch {
	case result.Category == models.Uncategorized:
	case ctx.Err() != nil:
		p.logger.Debug("Caller context done, skipping history blend",
			zap.String("prediction_id", predictionID),
			zap.Error(ctx.Err()))
	default:
		result.Confidence = p.estimator.Blend(ctx, result.Confidence, result.Category)
	}

	p.logger.Info("Transaction categorized",
		zap.String("prediction_id", predictionID),
		zap.String("category", result.Category),
		zap.Float64("confidence", result.Confidence),
		zap.String("source", string(result.Source)))

	return result
}

var errNoProvider = errors.New("no provider configured")

func (p *Predictor) predictWithProvider(ctx context.Context, description string) (models.PredictionResult, error) {
	if p.provider == nil {
		return models.PredictionResult{}, errNoProvider
	}

	content, err := p.complete(ctx, BuildPrompt(p.taxonomy, description))
	if err != nil {
		return models.PredictionResult{}, err
	}

	parsed, err := parseCompletion(content)
	if err != nil {
		return models.PredictionResult{}, err
	}

	result := models.PredictionResult{
		Category:   parsed.Category,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
		Source:     models.SourceProvider,
	}

	canonical, ok := p.taxonomy.Canonical(parsed.Category)
	if !ok {
		p.logger.Info("Provider returned category outside the set",
			zap.String("category", parsed.Category))
		result.Category = models.Uncategorized
		result.Confidence = math.Min(result.Confidence, invalidCategoryCeiling)
		return result, nil
	}
	result.Category = canonical
	return result, nil
}

type completionReply struct {
	content string
	err     error
}

// complete runs the provider call under the predictor's timeout. When the
// deadline passes the call is abandoned even if the provider ignores ctx.
func (p *Predictor) complete(ctx context.Context, prompt Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	replies := make(chan completionReply, 1)
	go func() {
		content, err := p.provider.Complete(ctx, prompt)
		replies <- completionReply{content: content, err: err}
	}()

	select {
	case reply := <-replies:
		return reply.content, reply.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Fallback to keyword classification if the provider fails
func (p *Predictor) fallbackClassification(description string) models.PredictionResult {
	category, confidence := p.keywords.Classify(description)
	return models.PredictionResult{
		Category:   category,
		Confidence: confidence,
		Source:     models.SourceKeyword,
	}
}
