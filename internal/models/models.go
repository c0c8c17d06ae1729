package models

import "time"

// Uncategorized is the category assigned when nothing better is known.
const Uncategorized = "Uncategorized"

// PredictionSource tells where a predicted category came from.
type PredictionSource string

const (
	SourceProvider PredictionSource = "provider"
	SourceKeyword  PredictionSource = "keyword"
	SourceEmpty    PredictionSource = "empty"
)

// PredictionRequest represents a single categorization request
type PredictionRequest struct {
	Description   string `json:"description"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// PredictionResult represents the outcome of categorizing a description
type PredictionResult struct {
	PredictionID string           `json:"prediction_id"`
	Category     string           `json:"category"`
	Confidence   float64          `json:"confidence"`
	Reasoning    string           `json:"reasoning,omitempty"`
	Source       PredictionSource `json:"source"`
}

// FeedbackSource tags who produced a feedback record.
type FeedbackSource string

const (
	FeedbackUser   FeedbackSource = "user"
	FeedbackAuto   FeedbackSource = "auto"
	FeedbackManual FeedbackSource = "manual"
)

// Valid reports whether s is one of the known feedback sources.
func (s FeedbackSource) Valid() bool {
	switch s {
	case FeedbackUser, FeedbackAuto, FeedbackManual:
		return true
	}
	return false
}

// FeedbackRecord is an immutable correction of a prior prediction
type FeedbackRecord struct {
	ID                string         `json:"id"`
	PredictionID      string         `json:"prediction_id,omitempty"`
	Description       string         `json:"description"`
	PredictedCategory string         `json:"predicted_category"`
	ActualCategory    string         `json:"actual_category"`
	Confidence        float64        `json:"confidence"`
	IsCorrect         bool           `json:"is_correct"`
	Source            FeedbackSource `json:"source"`
	CreatedAt         time.Time      `json:"created_at"`
}

// LedgerFeedback asks for a past prediction to be checked against the
// category the ledger now holds for the transaction.
type LedgerFeedback struct {
	TransactionID     string  `json:"transaction_id"`
	PredictionID      string  `json:"prediction_id,omitempty"`
	PredictedCategory string  `json:"predicted_category"`
	Confidence        float64 `json:"confidence"`
}

// CategoryAccuracy is derived from feedback records at read time and never stored
type CategoryAccuracy struct {
	Category string  `json:"category,omitempty"`
	Accuracy float64 `json:"accuracy"`
	Samples  int     `json:"samples"`
}

// AccuracyReport aggregates accuracy per predicted category and overall
type AccuracyReport struct {
	Overall    CategoryAccuracy   `json:"overall"`
	Categories []CategoryAccuracy `json:"categories"`
}
