package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"flowerlab/ml"
)

// Store is the training-run log kept in SQLite.
type Store struct {
	db *sql.DB
}

var _ ml.RunRecorder = (*Store)(nil)

// TrainingRun is one recorded training attempt.
type TrainingRun struct {
	ID            int64          `json:"id"`
	Status        string         `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	ModelPath     string         `json:"model_path,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	TrainRows     int            `json:"train_rows"`
	TestRows      int            `json:"test_rows"`
	TrainAccuracy float64        `json:"train_accuracy"`
	TestAccuracy  *float64       `json:"test_accuracy,omitempty"`
	DurationMS    int64          `json:"duration_ms"`
	TrainedAt     time.Time      `json:"trained_at"`
}

// Open creates the database file and schema if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        status TEXT NOT NULL,
        reason TEXT,
        model_path TEXT,
        params TEXT,
        train_rows INTEGER DEFAULT 0,
        test_rows INTEGER DEFAULT 0,
        train_accuracy REAL DEFAULT 0,
        test_accuracy REAL,
        duration_ms INTEGER DEFAULT 0,
        trained_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_training_runs_trained_at ON training_runs(trained_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends result to the log. It satisfies ml.RunRecorder.
func (s *Store) RecordRun(ctx context.Context, result *ml.TrainResult) error {
	if result == nil {
		return errors.New("nil training result")
	}
	params, err := json.Marshal(result.Params)
	if err != nil {
		return err
	}
	var testAccuracy sql.NullFloat64
	if result.TestAccuracy != nil {
		testAccuracy = sql.NullFloat64{Float64: *result.TestAccuracy, Valid: true}
	}
	trainedAt := result.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO training_runs (
            status, reason, model_path, params, train_rows, test_rows,
            train_accuracy, test_accuracy, duration_ms, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Status, result.Reason, result.ModelPath, string(params),
		result.TrainRows, result.TestRows, result.TrainAccuracy, testAccuracy,
		result.Duration.Milliseconds(), trainedAt)
	return err
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	query := `
        SELECT id, status, reason, model_path, params, train_rows, test_rows,
               train_accuracy, test_accuracy, duration_ms, trained_at
        FROM training_runs
        ORDER BY trained_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var (
			run          TrainingRun
			reason       sql.NullString
			modelPath    sql.NullString
			params       sql.NullString
			testAccuracy sql.NullFloat64
		)
		if err := rows.Scan(&run.ID, &run.Status, &reason, &modelPath, &params, &run.TrainRows, &run.TestRows,
			&run.TrainAccuracy, &testAccuracy, &run.DurationMS, &run.TrainedAt); err != nil {
			return nil, err
		}
		run.Reason = reason.String
		run.ModelPath = modelPath.String
		if params.Valid && params.String != "" && params.String != "null" {
			if err := json.Unmarshal([]byte(params.String), &run.Params); err != nil {
				return nil, fmt.Errorf("decode params of run %d: %w", run.ID, err)
			}
		}
		if testAccuracy.Valid {
			acc := testAccuracy.Float64
			run.TestAccuracy = &acc
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
