package storage

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/xaenox/ledger-categorizer/internal/models"
	"go.uber.org/zap"
)

// FallbackStorage serves from a primary store until it fails once, then
// switches to the fallback for the rest of the process lifetime. Records
// written to the primary before the switch are not visible afterwards.
type FallbackStorage struct {
	primary  Storage
	fallback Storage
	degraded atomic.Bool
	logger   *zap.Logger
}

// Status describes which backend is serving requests.
type Status struct {
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// NewFallbackStorage wraps primary and fallback. A nil primary starts degraded.
func NewFallbackStorage(primary, fallback Storage, logger *zap.Logger) *FallbackStorage {
	s := &FallbackStorage{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
	if primary == nil {
		s.degraded.Store(true)
		logger.Warn("Feedback store starting degraded, durability reduced")
	}
	return s
}

// Degraded reports whether the fallback backend is in use.
func (s *FallbackStorage) Degraded() bool {
	return s.degraded.Load()
}

func (s *FallbackStorage) Status() Status {
	if s.Degraded() {
		return Status{Degraded: true, Reason: "primary feedback store unavailable"}
	}
	return Status{}
}

// shouldDegrade reports whether err says the primary itself is broken.
// Errors caused by the caller's own context say nothing about the backend.
func shouldDegrade(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrInvalidFeedback) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (s *FallbackStorage) degrade(op string, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Error("Primary feedback store failed, switching to fallback",
			zap.String("operation", op),
			zap.Error(err))
	}
}

func (s *FallbackStorage) RecordFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	if !s.Degraded() {
		err := s.primary.RecordFeedback(ctx, record)
		if !shouldDegrade(ctx, err) {
			return err
		}
		s.degrade("record_feedback", err)
	}
	return s.fallback.RecordFeedback(ctx, record)
}

func (s *FallbackStorage) AccuracyFor(ctx context.Context, category string) (models.CategoryAccuracy, error) {
	if !s.Degraded() {
		stat, err := s.primary.AccuracyFor(ctx, category)
		if !shouldDegrade(ctx, err) {
			return stat, err
		}
		s.degrade("accuracy_for", err)
	}
	return s.fallback.AccuracyFor(ctx, category)
}

func (s *FallbackStorage) AccuracyReport(ctx context.Context) (*models.AccuracyReport, error) {
	if !s.Degraded() {
		report, err := s.primary.AccuracyReport(ctx)
		if !shouldDegrade(ctx, err) {
			return report, err
		}
		s.degrade("accuracy_report", err)
	}
	return s.fallback.AccuracyReport(ctx)
}

// Ping checks the backend currently serving requests.
func (s *FallbackStorage) Ping(ctx context.Context) error {
	if s.Degraded() {
		return s.fallback.Ping(ctx)
	}
	return s.primary.Ping(ctx)
}

func (s *FallbackStorage) Close() error {
	var errs []error
	if s.primary != nil {
		errs = append(errs, s.primary.Close())
	}
	errs = append(errs, s.fallback.Close())
	return errors.Join(errs...)
}
