package classifier

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/ledger-categorizer/internal/models"
	"github.com/xaenox/ledger-categorizer/internal/storage"
	"go.uber.org/zap/zaptest"
)

// mockProvider is a test implementation of the Provider interface.
type mockProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	hang    chan struct{}
	calls   int
	prompts []Prompt
}

func (m *mockProvider) Complete(_ context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	hang := m.hang
	m.mu.Unlock()

	if hang != nil {
		// Ignores the context on purpose: the predictor must not wait for it
		<-hang
	}
	return m.reply, m.err
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestPredictor(t *testing.T, provider Provider, store storage.Storage) *Predictor {
	t.Helper()
	logger := zaptest.NewLogger(t)
	if store == nil {
		store = storage.NewMemoryStorage()
	}
	estimator := NewEstimator(store, DefaultMinSamples, DefaultProviderWeight, logger)
	return NewPredictor(provider, estimator, DefaultTaxonomy(), time.Second, logger)
}

func TestPredictEmptyDescriptionSkipsProvider(t *testing.T) {
	provider := &mockProvider{reply: `{"category":"Travel","confidence":0.9}`}
	predictor := newTestPredictor(t, provider, nil)

	for _, desc := range []string{"", "   ", "\t\n "} {
		result := predictor.Predict(context.Background(), desc)
		assert.Equal(t, models.Uncategorized, result.Category)
		assert.Equal(t, 0.0, result.Confidence)
		assert.Equal(t, models.SourceEmpty, result.Source)
		assert.NotEmpty(t, result.PredictionID)
	}
	assert.Equal(t, 0, provider.callCount())
}

func TestPredictUsesProviderCategory(t *testing.T) {
	provider := &mockProvider{reply: `{"category":"Entertainment","confidence":0.92,"reasoning":"streaming service"}`}
	predictor := newTestPredictor(t, provider, nil)

	result := predictor.Predict(context.Background(), "Netflix monthly subscription")

	assert.Equal(t, "Entertainment", result.Category)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, "streaming service", result.Reasoning)
	assert.Equal(t, models.SourceProvider, result.Source)
	require.Equal(t, 1, provider.callCount())
	assert.Contains(t, provider.prompts[0].User, `"Netflix monthly subscription"`)
}

func TestPredictNormalizesCategoryCase(t *testing.T) {
	provider := &mockProvider{reply: `{"category":"  food & DRINK ","confidence":0.7}`}
	predictor := newTestPredictor(t, provider, nil)

	result := predictor.Predict(context.Background(), "Blue Bottle")
	assert.Equal(t, "Food & Drink", result.Category)
	assert.Equal(t, 0.7, result.Confidence)
}

func TestPredictInvalidCategoryBecomesUncategorized(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		confidence float64
	}{
		{name: "high confidence is capped", reply: `{"category":"Pets","confidence":0.95}`, confidence: 0.3},
		{name: "low confidence is kept", reply: `{"category":"Pets","confidence":0.1}`, confidence: 0.1},
		{name: "explicit uncategorized", reply: `{"category":"Uncategorized","confidence":0.8}`, confidence: 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := newTestPredictor(t, &mockProvider{reply: tt.reply}, nil)

			result := predictor.Predict(context.Background(), "Chewy order 8812")
			assert.Equal(t, models.Uncategorized, result.Category)
			assert.Equal(t, tt.confidence, result.Confidence)
			assert.Equal(t, models.SourceProvider, result.Source)
		})
	}
}

func TestPredictReplacesUnusableConfidence(t *testing.T) {
	for _, raw := range []string{`1.7`, `-0.2`, `"high"`, `null`, `[0.5]`} {
		t.Run(raw, func(t *testing.T) {
			reply := fmt.Sprintf(`{"category":"Travel","confidence":%s}`, raw)
			predictor := newTestPredictor(t, &mockProvider{reply: reply}, nil)

			result := predictor.Predict(context.Background(), "Lufthansa ticket")
			assert.Equal(t, "Travel", result.Category)
			assert.Equal(t, DefaultConfidence, result.Confidence)
		})
	}
}

func TestPredictMalformedReplyFallsBackToKeywords(t *testing.T) {
	replies := []string{
		"Transportation",
		`{"category":"Travel"}`,
		`{"confidence":0.9}`,
		`{"category":"","confidence":0.9}`,
		`["Travel", 0.9]`,
	}

	for _, reply := range replies {
		t.Run(reply, func(t *testing.T) {
			provider := &mockProvider{reply: reply}
			predictor := newTestPredictor(t, provider, nil)

			result := predictor.Predict(context.Background(), "Shell gas station")
			assert.Equal(t, "Transportation", result.Category)
			assert.Equal(t, KeywordConfidence, result.Confidence)
			assert.Equal(t, models.SourceKeyword, result.Source)
			assert.Equal(t, 1, provider.callCount())
		})
	}
}

func TestPredictProviderErrorFallsBack(t *testing.T) {
	provider := &mockProvider{err: errors.New("429 rate limit exceeded")}
	predictor := newTestPredictor(t, provider, nil)

	result := predictor.Predict(context.Background(), "Unknown merchant 12345")
	assert.Equal(t, models.Uncategorized, result.Category)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, models.SourceKeyword, result.Source)
}

func TestPredictTimeoutAbandonsProvider(t *testing.T) {
	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })

	logger := zaptest.NewLogger(t)
	provider := &mockProvider{reply: `{"category":"Travel","confidence":0.9}`, hang: hang}
	estimator := NewEstimator(storage.NewMemoryStorage(), DefaultMinSamples, DefaultProviderWeight, logger)
	predictor := NewPredictor(provider, estimator, DefaultTaxonomy(), 20*time.Millisecond, logger)

	start := time.Now()
	result := predictor.Predict(context.Background(), "Shell gas station")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "Transportation", result.Category)
	assert.Equal(t, 0.3, result.Confidence)
	assert.Equal(t, models.SourceKeyword, result.Source)
}

func TestPredictWithoutProviderUsesKeywords(t *testing.T) {
	predictor := newTestPredictor(t, nil, nil)

	result := predictor.Predict(context.Background(), "NETFLIX.COM")
	assert.Equal(t, "Entertainment", result.Category)
	assert.Equal(t, KeywordConfidence, result.Confidence)
}

func TestPredictBlendsHistoricalAccuracy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	for i := 0; i < 10; i++ {
		actual := "Food & Drink"
		if i%2 == 1 {
			actual = "Shopping"
		}
		require.NoError(t, store.RecordFeedback(ctx, &models.FeedbackRecord{
			Description:       fmt.Sprintf("purchase %d", i),
			PredictedCategory: "Food & Drink",
			ActualCategory:    actual,
			Confidence:        0.8,
			IsCorrect:         actual == "Food & Drink",
			Source:            models.FeedbackUser,
		}))
	}

	provider := &mockProvider{reply: `{"category":"Food & Drink","confidence":0.8}`}
	predictor := newTestPredictor(t, provider, store)

	result := predictor.Predict(ctx, "Blue Bottle Coffee")
	assert.Equal(t, "Food & Drink", result.Category)
	assert.InDelta(t, 0.68, result.Confidence, 1e-9)
}

func TestPredictInvariantsHoldForAnyReply(t *testing.T) {
	replies := []string{
		`{"category":"Travel","confidence":0.5}`,
		`{"category":"Groceries","confidence":0.99}`,
		`{"category":"Income","confidence":1e308}`,
		`{"category":"Income","confidence":-1e308}`,
		`garbage`,
		``,
		`{"category":123,"confidence":0.5}`,
	}
	descriptions := []string{"Shell gas station", "Unknown merchant 12345", "Payroll ACME", "x"}

	taxonomy := DefaultTaxonomy()
	for _, reply := range replies {
		for _, desc := range descriptions {
			predictor := newTestPredictor(t, &mockProvider{reply: reply}, nil)
			result := predictor.Predict(context.Background(), desc)

			_, inSet := taxonomy.Canonical(result.Category)
			assert.True(t, inSet || result.Category == models.Uncategorized,
				"reply %q description %q produced %q", reply, desc, result.Category)
			assert.GreaterOrEqual(t, result.Confidence, 0.0)
			assert.LessOrEqual(t, result.Confidence, 1.0)
			assert.NotEmpty(t, result.Category)
		}
	}
}

func TestPredictIsIdempotentWithoutNewFeedback(t *testing.T) {
	provider := &mockProvider{reply: `{"category":"Shopping","confidence":0.77}`}
	predictor := newTestPredictor(t, provider, nil)

	first := predictor.Predict(context.Background(), "IKEA Berlin")
	second := predictor.Predict(context.Background(), "IKEA Berlin")

	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.NotEqual(t, first.PredictionID, second.PredictionID)
}

func TestPredictSkipsBlendWhenCallerContextIsDone(t *testing.T) {
	source := &staticAccuracy{stat: models.CategoryAccuracy{Accuracy: 1, Samples: 50}}
	logger := zaptest.NewLogger(t)
	estimator := NewEstimator(source, DefaultMinSamples, DefaultProviderWeight, logger)
	predictor := NewPredictor(nil, estimator, DefaultTaxonomy(), time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := predictor.Predict(ctx, "Shell gas station")

	assert.Equal(t, "Transportation", result.Category)
	assert.Equal(t, KeywordConfidence, result.Confidence)
	assert.Empty(t, source.asks)
}

func TestPredictCallerDeadlineKeepsDurableStore(t *testing.T) {
	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })

	primary, err := storage.NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	store := storage.NewFallbackStorage(primary, storage.NewMemoryStorage(), logger)
	defer store.Close()

	provider := &mockProvider{hang: hang}
	estimator := NewEstimator(store, DefaultMinSamples, DefaultProviderWeight, logger)
	predictor := NewPredictor(provider, estimator, DefaultTaxonomy(), time.Second, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	result := predictor.Predict(ctx, "Shell gas station")

	assert.Equal(t, "Transportation", result.Category)
	assert.Equal(t, KeywordConfidence, result.Confidence)
	assert.False(t, store.Degraded())
	assert.Equal(t, 1, provider.callCount())
}
