//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package sink abstracts the hierarchical object store the warehouse is
// published to. A run stages its output privately, then makes it visible
// with a single publish step; a reader never observes a partially written
// table. The previously published snapshot stays readable until the new
// one fully replaces it.
package sink

import (
	"context"
	"errors"
	"io"
)

// ErrPublish marks a failed atomic publish. The staged artifacts are
// discardable and the previously published output is untouched.
var ErrPublish = errors.New("publish failure")

// ErrRunLocked is returned when another run holds the output location.
var ErrRunLocked = errors.New("output location is locked by another run")

// Sink is the destination contract for the load writer.
//
// Stage opens a writer for one staged file of a table; staged content is
// invisible to readers. Publish atomically replaces the visible output of
// the given tables with the run's staged output and returns the visible
// location per table. Discard drops all staged artifacts of the run.
type Sink interface {
	// AcquireRunLock enforces the single-run-at-a-time discipline on the
	// output location. Returns ErrRunLocked if another run holds it.
	AcquireRunLock(ctx context.Context, runID string) error

	// ReleaseRunLock releases the run lock. Safe to call after a failed
	// acquire.
	ReleaseRunLock(ctx context.Context) error

	Stage(ctx context.Context, runID, table, name string) (io.WriteCloser, error)

	Publish(ctx context.Context, runID string, tables []string) (map[string]string, error)

	Discard(ctx context.Context, runID string) error
}
