package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/GabrielWalak/delivery-prediction/internal/domain/models"
	"github.com/GabrielWalak/delivery-prediction/internal/domain/repository"
)

const modelName = "gradient_boosting"

type trainingRunRow struct {
	ModelName       string    `db:"model_name"`
	Source          string    `db:"source"`
	Success         bool      `db:"success"`
	Error           string    `db:"error"`
	RawRecords      int       `db:"raw_records"`
	Records         int       `db:"records"`
	OutliersRemoved int       `db:"outliers_removed"`
	R2              float64   `db:"r2"`
	MAE             float64   `db:"mae"`
	DurationMs      int64     `db:"duration_ms"`
	Features        string    `db:"features"`
	TrainedAt       time.Time `db:"trained_at"`
}

func newTrainingRunRow(r models.TrainingReport) trainingRunRow {
	return trainingRunRow{
		ModelName:       modelName,
		Source:          r.Source,
		Success:         r.Success,
		Error:           r.Error,
		RawRecords:      r.RawRecords,
		Records:         r.Records,
		OutliersRemoved: r.OutliersRemoved,
		R2:              r.Metrics.R2,
		MAE:             r.Metrics.MAE,
		DurationMs:      r.Duration.Milliseconds(),
		Features:        strings.Join(r.Features, ","),
		TrainedAt:       r.TrainedAt.UTC(),
	}
}

const insertTrainingRun = `INSERT INTO %s (
	model_name, source, success, error, raw_records, records, outliers_removed,
	r2, mae, duration_ms, features, trained_at
) VALUES (
	:model_name, :source, :success, :error, :raw_records, :records, :outliers_removed,
	:r2, :mae, :duration_ms, :features, :trained_at
)`

// SQLTrainingRecorder appends training runs to a SQL table through sqlx.
// The same code serves Postgres (training_runs) and SQLite (training_log);
// only the DDL differs.
type SQLTrainingRecorder struct {
	db     *sqlx.DB
	table  string
	schema string
	owns   bool
}

// NewPostgresTrainingRecorder records into training_runs on an existing pool.
func NewPostgresTrainingRecorder(db *sqlx.DB) *SQLTrainingRecorder {
	return &SQLTrainingRecorder{
		db:    db,
		table: "training_runs",
		schema: `CREATE TABLE IF NOT EXISTS training_runs (
	id BIGSERIAL PRIMARY KEY,
	model_name VARCHAR(50) NOT NULL,
	source VARCHAR(32) NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	raw_records INTEGER NOT NULL,
	records INTEGER NOT NULL,
	outliers_removed INTEGER NOT NULL,
	r2 DOUBLE PRECISION NOT NULL,
	mae DOUBLE PRECISION NOT NULL,
	duration_ms BIGINT NOT NULL,
	features TEXT NOT NULL,
	trained_at TIMESTAMPTZ NOT NULL
)`,
	}
}

// NewSQLiteTrainingRecorder opens (creating if needed) a local SQLite file.
func NewSQLiteTrainingRecorder(path string) (*SQLTrainingRecorder, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLTrainingRecorder{
		db:    db,
		table: "training_log",
		owns:  true,
		schema: `CREATE TABLE IF NOT EXISTS training_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model_name VARCHAR(50),
	source VARCHAR(32),
	success BOOLEAN,
	error TEXT,
	raw_records INTEGER,
	records INTEGER,
	outliers_removed INTEGER,
	r2 REAL,
	mae REAL,
	duration_ms INTEGER,
	features TEXT,
	trained_at DATETIME
)`,
	}, nil
}

func (r *SQLTrainingRecorder) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.schema); err != nil {
		return fmt.Errorf("init %s: %w", r.table, err)
	}
	return nil
}

func (r *SQLTrainingRecorder) Record(ctx context.Context, report models.TrainingReport) error {
	q := fmt.Sprintf(insertTrainingRun, r.table)
	if _, err := r.db.NamedExecContext(ctx, q, newTrainingRunRow(report)); err != nil {
		return fmt.Errorf("insert %s: %w", r.table, err)
	}
	return nil
}

// Recent returns the latest n runs, newest first.
func (r *SQLTrainingRecorder) Recent(ctx context.Context, n int) ([]models.TrainingReport, error) {
	q := r.db.Rebind(fmt.Sprintf(`SELECT model_name, source, success, error, raw_records, records,
	outliers_removed, r2, mae, duration_ms, features, trained_at
FROM %s ORDER BY id DESC LIMIT ?`, r.table))

	var rows []trainingRunRow
	if err := r.db.SelectContext(ctx, &rows, q, n); err != nil {
		return nil, err
	}

	out := make([]models.TrainingReport, len(rows))
	for i, row := range rows {
		var features []string
		if row.Features != "" {
			features = strings.Split(row.Features, ",")
		}
		out[i] = models.TrainingReport{
			Source:          row.Source,
			Success:         row.Success,
			Error:           row.Error,
			RawRecords:      row.RawRecords,
			Records:         row.Records,
			OutliersRemoved: row.OutliersRemoved,
			Features:        features,
			Metrics:         models.ModelMetrics{R2: row.R2, MAE: row.MAE},
			Duration:        time.Duration(row.DurationMs) * time.Millisecond,
			TrainedAt:       row.TrainedAt,
		}
	}
	return out, nil
}

// Close closes the pool only when the recorder opened it.
func (r *SQLTrainingRecorder) Close() error {
	if r.owns {
		return r.db.Close()
	}
	return nil
}

// MultiRecorder fans a report out to several recorders and returns the first error.
type MultiRecorder []repository.TrainingRecorder

func (m MultiRecorder) Init(ctx context.Context) error {
	for _, r := range m {
		if err := r.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiRecorder) Record(ctx context.Context, report models.TrainingReport) error {
	var first error
	for _, r := range m {
		if err := r.Record(ctx, report); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiRecorder) Close() error {
	var first error
	for _, r := range m {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ repository.TrainingRecorder = (*SQLTrainingRecorder)(nil)
	_ repository.TrainingRecorder = MultiRecorder(nil)
)
