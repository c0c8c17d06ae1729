package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/ledger-categorizer/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	logger.Info("Connected to PostgreSQL", zap.Int("max_open_conns", maxOpen))
	return &PostgresStorage{db: db, logger: logger}, nil
}

// Migrate creates the feedback table when it does not exist yet.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RecordFeedback(ctx context.Context, record *models.FeedbackRecord) error {
	if err := prepareRecord(record); err != nil {
		return err
	}

	query := `
		INSERT INTO feedback (id, prediction_id, description, predicted_category,
			actual_category, confidence, is_correct, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
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
		return fmt.Errorf("error inserting feedback: %w", err)
	}
	return nil
}

func (s *PostgresStorage) AccuracyFor(ctx context.Context, category string) (models.CategoryAccuracy, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0)
		FROM feedback
		WHERE predicted_category = $1`

	var t tally
	if err := s.db.QueryRowContext(ctx, query, category).Scan(&t.total, &t.correct); err != nil {
		return models.CategoryAccuracy{}, fmt.Errorf("error querying accuracy: %w", err)
	}
	return t.accuracy(category), nil
}

func (s *PostgresStorage) AccuracyReport(ctx context.Context) (*models.AccuracyReport, error) {
	query := `
		SELECT predicted_category, COUNT(*), SUM(CASE WHEN is_correct THEN 1 ELSE 0 END)
		FROM feedback
		GROUP BY predicted_category`

	tallies, err := scanTallies(ctx, s.db, query)
	if err != nil {
		return nil, err
	}
	return buildReport(tallies), nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// scanTallies runs a (category, total, correct) aggregation query.
func scanTallies(ctx context.Context, db *sql.DB, query string) (map[string]tally, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying accuracy report: %w", err)
	}
	defer rows.Close()

	tallies := make(map[string]tally)
	for rows.Next() {
		var category string
		var t tally
		if err := rows.Scan(&category, &t.total, &t.correct); err != nil {
			return nil, fmt.Errorf("error scanning accuracy row: %w", err)
		}
		tallies[category] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accuracy rows: %w", err)
	}
	return tallies, nil
}
