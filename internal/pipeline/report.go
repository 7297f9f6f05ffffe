//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

package pipeline

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/internal/schema"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Report is the structured run outcome. A run either fully succeeds (new
// complete snapshot visible, skip counts reported) or fully fails (the old
// snapshot, if any, remains the visible state).
type Report struct {
	RunID             string             `json:"run_id"`
	Status            Status             `json:"status"`
	RowsWritten       map[string]int64   `json:"rows_written"`
	RowsSkipped       map[string]int64   `json:"rows_skipped"`
	SkipReasons       map[string]int64   `json:"skip_reasons,omitempty"`
	LocationConflicts []string           `json:"location_conflicts,omitempty"`
	Violations        []schema.Violation `json:"violations,omitempty"`
	Locations         map[string]string  `json:"locations,omitempty"`
	StartedAt         time.Time          `json:"started_at"`
	Elapsed           time.Duration      `json:"elapsed"`
	Error             string             `json:"error,omitempty"`

	// Err is the underlying failure, when Status is failure.
	Err error `json:"-"`
}

func newReport(runID string) *Report {
	return &Report{
		RunID:       runID,
		Status:      StatusFailure,
		RowsWritten: make(map[string]int64),
		RowsSkipped: make(map[string]int64),
		StartedAt:   time.Now().UTC(),
	}
}

func (r *Report) fail(err error) *Report {
	r.Status = StatusFailure
	r.Err = err
	r.Error = err.Error()
	r.Elapsed = time.Since(r.StartedAt)
	return r
}

func (r *Report) succeed() *Report {
	r.Status = StatusSuccess
	r.Elapsed = time.Since(r.StartedAt)
	return r
}

// JSON renders the report for operational tooling.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Log writes the report summary to the structured log.
func (r *Report) Log() {
	var ev *zerolog.Event
	if r.Status == StatusSuccess {
		ev = logging.Info()
	} else {
		ev = logging.Error().Err(r.Err)
	}
	for table, n := range r.RowsWritten {
		ev = ev.Int64("written_"+table, n)
	}
	for table, n := range r.RowsSkipped {
		if n > 0 {
			ev = ev.Int64("skipped_"+table, n)
		}
	}
	if len(r.LocationConflicts) > 0 {
		ev = ev.Strs("conflicting_postal_codes", r.LocationConflicts)
	}
	if len(r.Violations) > 0 {
		ev = ev.Int("violations", len(r.Violations))
	}
	ev.
		Str("run_id", r.RunID).
		Str("status", string(r.Status)).
		Dur("elapsed", r.Elapsed).
		Msg("Pipeline run finished")
}
