package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/ledger-categorizer/internal/models"
	"github.com/xaenox/ledger-categorizer/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrLedgerRead means the transaction could not be fetched from the ledger.
	ErrLedgerRead = errors.New("ledger read failed")
	// ErrNothingToCompare means the ledger transaction has no category or
	// description yet, so there is no correction to learn from.
	ErrNothingToCompare = errors.New("ledger transaction has nothing to compare")
)

type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (models.WebhookTransaction, error)
}

type FeedbackRecorder interface {
	RecordFeedback(ctx context.Context, record *models.FeedbackRecord) error
}

// Canonicalizer maps a category name onto the configured spelling.
type Canonicalizer interface {
	Normalize(name string) string
}

// Corrections turns the category a user settled on in the ledger into
// feedback on an earlier prediction.
type Corrections struct {
	ledger   TransactionReader
	store    FeedbackRecorder
	taxonomy Canonicalizer
	logger   *zap.Logger
}

func NewCorrections(ledger TransactionReader, store FeedbackRecorder, taxonomy Canonicalizer, logger *zap.Logger) *Corrections {
	return &Corrections{
		ledger:   ledger,
		store:    store,
		taxonomy: taxonomy,
		logger:   logger,
	}
}

// Collect fetches the transaction from the ledger, compares its category
// with the predicted one and stores the outcome as automatic feedback.
func (c *Corrections) Collect(ctx context.Context, req models.LedgerFeedback) (*models.FeedbackRecord, error) {
	transactionID := strings.TrimSpace(req.TransactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction_id is required", storage.ErrInvalidFeedback)
	}
	predicted := c.taxonomy.Normalize(req.PredictedCategory)
	if predicted == "" {
		return nil, fmt.Errorf("%w: predicted category is required", storage.ErrInvalidFeedback)
	}

	tx, err := c.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerRead, err)
	}

	actual := c.taxonomy.Normalize(tx.Category)
	description := ""
	if tx.Description != nil {
		description = strings.TrimSpace(*tx.Description)
	}
	if actual == "" || description == "" {
		c.logger.Debug("Ledger transaction not comparable yet",
			zap.String("transaction_id", transactionID),
			zap.Bool("has_category", actual != ""))
		return nil, ErrNothingToCompare
	}

	record := &models.FeedbackRecord{
		PredictionID:      strings.TrimSpace(req.PredictionID),
		Description:       description,
		PredictedCategory: predicted,
		ActualCategory:    actual,
		Confidence:        req.Confidence,
		IsCorrect:         predicted == actual,
		Source:            models.FeedbackAuto,
	}
	if err := c.store.RecordFeedback(ctx, record); err != nil {
		return nil, err
	}

	c.logger.Info("Ledger feedback recorded",
		zap.String("transaction_id", transactionID),
		zap.String("feedback_id", record.ID),
		zap.String("predicted_category", predicted),
		zap.String("actual_category", actual),
		zap.Bool("is_correct", record.IsCorrect))
	return record, nil
}
