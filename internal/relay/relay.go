package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xaenox/ledger-categorizer/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrMalformedPayload means the event did not carry a usable transaction.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrLedgerWrite means the category was predicted but could not be applied.
	ErrLedgerWrite = errors.New("ledger write failed")
)

const DefaultThreshold = 0.3

// State is a step in the handling of one webhook event.
type State string

const (
	StateReceived  State = "received"
	StateExtracted State = "extracted"
	StatePredicted State = "predicted"
	StateApplied   State = "applied"
	StateSkipped   State = "skipped"
	StateFailed    State = "failed"
	StateTerminal  State = "terminal"
)

// storeTriggers are the ledger triggers fired when a transaction is created.
var storeTriggers = map[string]bool{
	"STORE_TRANSACTION":         true,
	"TRIGGER_STORE_TRANSACTION": true,
}

type Categorizer interface {
	Predict(ctx context.Context, description string) models.PredictionResult
}

type LedgerWriter interface {
	ApplyCategory(ctx context.Context, journalID, category string) error
}

// Outcome is the result of handling one event. States lists every state the
// event passed through and always ends with StateTerminal.
type Outcome struct {
	Response models.WebhookResponse
	States   []State
	Err      error
}

// Relay categorizes transactions the ledger reports and writes the category back.
type Relay struct {
	predictor Categorizer
	ledger    LedgerWriter
	threshold float64
	logger    *zap.Logger
}

func New(predictor Categorizer, ledger LedgerWriter, threshold float64, logger *zap.Logger) *Relay {
	return &Relay{
		predictor: predictor,
		ledger:    ledger,
		threshold: threshold,
		logger:    logger,
	}
}

func (r *Relay) Threshold() float64 {
	return r.threshold
}

// Handle processes a raw webhook body. Only the first transaction of the
// event is categorized. The ledger is written at most once.
func (r *Relay) Handle(ctx context.Context, body []byte) Outcome {
	out := Outcome{States: []State{StateReceived}}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return r.reject(out, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}

	if event.Trigger != "" && !storeTriggers[event.Trigger] {
		r.logger.Info("Ignoring non transaction event", zap.String("trigger", event.Trigger))
		out.Response = models.WebhookResponse{
			Status: models.StatusIgnored,
			Detail: "not a transaction event",
		}
		return r.finish(out)
	}

	tx, err := firstTransaction(event)
	if err != nil {
		return r.reject(out, err)
	}
	journalID := string(tx.JournalID)
	description := *tx.Description
	out.States = append(out.States, StateExtracted)

	prediction := r.predictor.Predict(ctx, description)
	out.States = append(out.States, StatePredicted)
	out.Response = models.WebhookResponse{
		Category:      prediction.Category,
		Confidence:    prediction.Confidence,
		TransactionID: journalID,
	}

	logger := r.logger.With(
		zap.String("transaction_id", journalID),
		zap.String("prediction_id", prediction.PredictionID),
		zap.String("category", prediction.Category),
		zap.Float64("confidence", prediction.Confidence))

	switch {
	case prediction.Category == models.Uncategorized:
		logger.Info("No category predicted, nothing applied")
		return r.skip(out, "no category predicted")
	case prediction.Confidence < r.threshold:
		logger.Info("Confidence below threshold, category not applied",
			zap.Float64("threshold", r.threshold))
		return r.skip(out, "confidence below threshold")
	}

	if err := r.ledger.ApplyCategory(ctx, journalID, prediction.Category); err != nil {
		logger.Error("Failed to apply category to ledger", zap.Error(err))
		out.States = append(out.States, StateFailed)
		out.Err = fmt.Errorf("%w: %v", ErrLedgerWrite, err)
		out.Response.Status = models.StatusError
		out.Response.Detail = "failed to update ledger transaction"
		return r.finish(out)
	}

	logger.Info("Category applied to ledger")
	out.States = append(out.States, StateApplied)
	out.Response.Status = models.StatusCategoryUpdated
	return r.finish(out)
}

func firstTransaction(event models.WebhookEvent) (models.WebhookTransaction, error) {
	if len(event.Content.Transactions) == 0 {
		return models.WebhookTransaction{}, fmt.Errorf("%w: no transactions", ErrMalformedPayload)
	}
	tx := event.Content.Transactions[0]
	if strings.TrimSpace(string(tx.JournalID)) == "" {
		return models.WebhookTransaction{}, fmt.Errorf("%w: missing transaction_journal_id", ErrMalformedPayload)
	}
	if tx.Description == nil {
		return models.WebhookTransaction{}, fmt.Errorf("%w: missing description", ErrMalformedPayload)
	}
	return tx, nil
}

func (r *Relay) skip(out Outcome, detail string) Outcome {
	out.States = append(out.States, StateSkipped)
	out.Response.Status = models.StatusIgnored
	out.Response.Detail = detail
	return r.finish(out)
}

func (r *Relay) reject(out Outcome, err error) Outcome {
	r.logger.Warn("Rejected webhook payload", zap.Error(err))
	out.Err = err
	out.Response = models.WebhookResponse{
		Status: models.StatusError,
		Detail: err.Error(),
	}
	return r.finish(out)
}

func (r *Relay) finish(out Outcome) Outcome {
	out.States = append(out.States, StateTerminal)
	return out
}
