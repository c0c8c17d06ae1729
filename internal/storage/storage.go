package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/ledger-categorizer/internal/models"
)

// ErrInvalidFeedback is returned when a feedback record fails validation.
var ErrInvalidFeedback = errors.New("invalid feedback")

// Storage is the append-only feedback store.
type Storage interface {
	RecordFeedback(ctx context.Context, record *models.FeedbackRecord) error
	AccuracyFor(ctx context.Context, category string) (models.CategoryAccuracy, error)
	AccuracyReport(ctx context.Context) (*models.AccuracyReport, error)
	Ping(ctx context.Context) error
	Close() error
}

// prepareRecord validates a record and fills in the id and timestamp when absent.
func prepareRecord(record *models.FeedbackRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidFeedback)
	}
	if strings.TrimSpace(record.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidFeedback)
	}
	if strings.TrimSpace(record.PredictedCategory) == "" {
		return fmt.Errorf("%w: predicted category is required", ErrInvalidFeedback)
	}
	if strings.TrimSpace(record.ActualCategory) == "" {
		return fmt.Errorf("%w: actual category is required", ErrInvalidFeedback)
	}
	if math.IsNaN(record.Confidence) || record.Confidence < 0 || record.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidFeedback, record.Confidence)
	}
	if record.Source == "" {
		record.Source = models.FeedbackUser
	}
	if !record.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidFeedback, record.Source)
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return nil
}

// tally counts outcomes for one predicted category.
type tally struct {
	total   int
	correct int
}

func (t tally) accuracy(category string) models.CategoryAccuracy {
	if t.total == 0 {
		return models.CategoryAccuracy{Category: category}
	}
	return models.CategoryAccuracy{
		Category: category,
		Accuracy: float64(t.correct) / float64(t.total),
		Samples:  t.total,
	}
}

// buildReport turns per-category tallies into a report sorted by category name.
func buildReport(tallies map[string]tally) *models.AccuracyReport {
	report := &models.AccuracyReport{Categories: make([]models.CategoryAccuracy, 0, len(tallies))}

	var overall tally
	for category, t := range tallies {
		report.Categories = append(report.Categories, t.accuracy(category))
		overall.total += t.total
		overall.correct += t.correct
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		return report.Categories[i].Category < report.Categories[j].Category
	})

	report.Overall = overall.accuracy("")
	return report
}
