//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package catalog emits the refresh signal that tells the external catalog
// to re-scan the published warehouse. The contract is fire-and-forget: a
// failed refresh is logged by the caller, never fails the run.
package catalog

import "context"

// Notifier triggers one catalog refresh.
type Notifier interface {
	// Refresh asks the catalog to re-scan the warehouse output.
	Refresh(ctx context.Context) error

	// Name identifies the notifier for logging.
	Name() string
}

// Noop is the notifier used when no catalog is configured.
type Noop struct{}

func (Noop) Refresh(context.Context) error { return nil }

func (Noop) Name() string { return "noop" }
