package models

import (
	"errors"
	"time"
)

// ModelMetrics are computed once on the hold-out split.
type ModelMetrics struct {
	R2  float64 `json:"r2_score"`
	MAE float64 `json:"mae"`
}

// TrainingReport summarizes one training attempt.
type TrainingReport struct {
	Source          string        `json:"source" db:"source"`
	Success         bool          `json:"success" db:"success"`
	Error           string        `json:"error,omitempty" db:"error"`
	RawRecords      int           `json:"raw_records" db:"raw_records"`
	Records         int           `json:"records" db:"records"`
	OutliersRemoved int           `json:"outliers_removed" db:"outliers_removed"`
	Features        []string      `json:"features" db:"-"`
	Metrics         ModelMetrics  `json:"metrics" db:"-"`
	Duration        time.Duration `json:"duration" db:"-"`
	TrainedAt       time.Time     `json:"trained_at" db:"trained_at"`
}

// Version identifies the model trained by this run.
func (r TrainingReport) Version() string {
	return r.TrainedAt.UTC().Format("20060102T150405.000000000Z")
}

var ErrNotTrained = errors.New("prediction engine has not been trained")

// InitResult is the outcome of the single startup training attempt.
type InitResult struct {
	Ready  bool
	Err    error
	Report TrainingReport
}

// NotReady returns the cold state, with ErrNotTrained when no attempt was made yet.
func NotReady(err error) InitResult {
	if err == nil {
		err = ErrNotTrained
	}
	return InitResult{Err: err}
}

// Reason is a short description of why the engine is cold, or "" when ready.
func (r InitResult) Reason() string {
	if r.Ready {
		return ""
	}
	if r.Err == nil {
		return ErrNotTrained.Error()
	}
	return r.Err.Error()
}
