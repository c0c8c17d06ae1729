package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/xaenox/ledger-categorizer/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS feedback (
	id                 TEXT PRIMARY KEY,
	prediction_id      TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL,
	predicted_category TEXT NOT NULL,
	actual_category    TEXT NOT NULL,
	confidence         REAL NOT NULL,
	is_correct         INTEGER NOT NULL,
	source             TEXT NOT NULL,
	created_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_predicted_category ON feedback (predicted_category);
`

// SQLiteStorage is the file-backed store used when PostgreSQL is unreachable.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens (or creates) the database file at path and applies the schema.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

func (s *SQLiteStorage) RecordFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	if err := prepareRecord(record); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, prediction_id, description, predicted_category,
			actual_category, confidence, is_correct, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.PredictionID,
		record.Description,
		record.PredictedCategory,
		record.ActualCategory,
		record.Confidence,
		record.IsCorrect,
		string(record.Source),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) AccuracyFor(ctx context.Context, category string) (models.CategoryAccuracy, error) {
	var t tally
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0)
		FROM feedback
		WHERE predicted_category = ?`, category).Scan(&t.total, &t.correct)
	if err != nil {
		return models.CategoryAccuracy{}, fmt.Errorf("failed to query accuracy: %w", err)
	}
	return t.accuracy(category), nil
}

func (s *SQLiteStorage) AccuracyReport(ctx context.Context) (*models.AccuracyReport, error) {
	tallies, err := scanTallies(ctx, s.db, `
		SELECT predicted_category, COUNT(*), SUM(CASE WHEN is_correct THEN 1 ELSE 0 END)
		FROM feedback
		GROUP BY predicted_category`)
	if err != nil {
		return nil, err
	}
	return buildReport(tallies), nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file location.
func (s *SQLiteStorage) Path() string {
	return s.path
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
