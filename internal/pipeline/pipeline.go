//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package pipeline sequences extraction, transformation, and load into one
// full-refresh run and reports the structured outcome.
package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/edgemart/starlift/internal/catalog"
	"github.com/edgemart/starlift/internal/extract"
	"github.com/edgemart/starlift/internal/load"
	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/internal/schema"
	"github.com/edgemart/starlift/internal/sink"
	"github.com/edgemart/starlift/internal/transform"
)

// Options tunes run behavior.
type Options struct {
	// RetryAttempts is how many extra extraction attempts are made when
	// the source is unavailable. Schema mismatches are never retried.
	RetryAttempts int

	// RetryBackoff is the initial backoff between extraction attempts; it
	// doubles on each retry.
	RetryBackoff time.Duration

	// Compression is the parquet codec (snappy, zstd, none).
	Compression string
}

// Pipeline orchestrates one full-refresh run at a time against an output
// location. The sink's run lock is the only cross-run concurrency control:
// every run's intermediate state is private until publish.
type Pipeline struct {
	source   extract.Source
	sink     sink.Sink
	writer   *load.Writer
	notifier catalog.Notifier
	opts     Options
}

// New assembles a pipeline.
func New(source extract.Source, snk sink.Sink, notifier catalog.Notifier, opts Options) (*Pipeline, error) {
	if opts.Compression == "" {
		opts.Compression = "snappy"
	}
	writer, err := load.NewWriter(snk, opts.Compression)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = catalog.Noop{}
	}
	return &Pipeline{
		source:   source,
		sink:     snk,
		writer:   writer,
		notifier: notifier,
		opts:     opts,
	}, nil
}

// Run executes one full pipeline run and always returns a report; on
// failure the report carries the error and any previously published
// snapshot remains the visible state.
func (p *Pipeline) Run(ctx context.Context) *Report {
	report := newReport(newRunID())
	logging.Info().Str("run_id", report.RunID).Msg("Starting pipeline run")

	if err := p.sink.AcquireRunLock(ctx, report.RunID); err != nil {
		return report.fail(fmt.Errorf("acquire run lock: %w", err))
	}
	defer func() {
		if err := p.sink.ReleaseRunLock(context.WithoutCancel(ctx)); err != nil {
			logging.Warn().Err(err).Msg("Could not release run lock")
		}
	}()

	snap, err := p.extractWithRetry(ctx)
	if err != nil {
		return report.fail(err)
	}
	if err := ctx.Err(); err != nil {
		return report.fail(fmt.Errorf("run aborted: %w", err))
	}

	result, err := transform.Build(snap)
	if err != nil {
		return report.fail(err)
	}
	report.RowsWritten = result.Star.RowCounts()
	report.RowsSkipped = result.Stats.Skipped
	report.SkipReasons = result.Stats.SkipReasons
	report.LocationConflicts = result.Stats.ConflictingPostalCodes
	report.Violations = result.Violations

	if err := ctx.Err(); err != nil {
		return report.fail(fmt.Errorf("run aborted: %w", err))
	}

	if err := p.writer.Stage(ctx, report.RunID, result.Star); err != nil {
		p.discard(ctx, report.RunID)
		return report.fail(err)
	}
	if err := ctx.Err(); err != nil {
		// Clean abort between staging and publish: nothing became visible.
		p.discard(ctx, report.RunID)
		return report.fail(fmt.Errorf("run aborted: %w", err))
	}

	locations, err := p.writer.Publish(ctx, report.RunID)
	if err != nil {
		p.discard(ctx, report.RunID)
		return report.fail(err)
	}
	report.Locations = locations

	if err := p.notifier.Refresh(ctx); err != nil {
		// Fire-and-forget: the snapshot is published either way.
		logging.Warn().
			Err(err).
			Str("notifier", p.notifier.Name()).
			Msg("Catalog refresh signal failed")
	} else {
		logging.Info().
			Str("notifier", p.notifier.Name()).
			Msg("Catalog refresh signaled")
	}

	return report.succeed()
}

// extractWithRetry retries source-unavailable extractions with exponential
// backoff. Schema mismatches abort immediately: a data contract violation
// needs human intervention, not another attempt.
func (p *Pipeline) extractWithRetry(ctx context.Context) (*schema.Snapshot, error) {
	backoff := p.opts.RetryBackoff
	attempts := p.opts.RetryAttempts + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		snap, err := p.source.Snapshot(ctx)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if !errors.Is(err, extract.ErrSourceUnavailable) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		logging.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Source unavailable; retrying extraction")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("run aborted: %w", ctx.Err())
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("extraction failed after %d attempts: %w", attempts, lastErr)
}

func (p *Pipeline) discard(ctx context.Context, runID string) {
	if err := p.writer.Discard(context.WithoutCancel(ctx), runID); err != nil {
		logging.Warn().Err(err).Str("run_id", runID).Msg("Could not discard staged output")
	}
}

// newRunID returns a time-ordered unique run identifier.
func newRunID() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return time.Now().UTC().Format("20060102t150405z") + "-" + hex.EncodeToString(suffix)
}
