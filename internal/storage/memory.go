package storage

import (
	"context"
	"sync"

	"github.com/xaenox/ledger-categorizer/internal/models"
)

// MemoryStorage keeps feedback in process. Nothing survives a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []models.FeedbackRecord
	tallies map[string]tally
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		tallies: make(map[string]tally),
	}
}

func (s *MemoryStorage) RecordFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	if err := prepareRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, *record)
	t := s.tallies[record.PredictedCategory]
	t.total++
	if record.IsCorrect {
		t.correct++
	}
	s.tallies[record.PredictedCategory] = t
	return nil
}

func (s *MemoryStorage) AccuracyFor(ctx context.Context, category string) (models.CategoryAccuracy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tallies[category].accuracy(category), nil
}

func (s *MemoryStorage) AccuracyReport(ctx context.Context) (*models.AccuracyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return buildReport(s.tallies), nil
}

// Records returns a copy of everything recorded so far, oldest first.
func (s *MemoryStorage) Records() []models.FeedbackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FeedbackRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
