//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/edgemart/starlift/internal/logging"
)

const (
	stagingDir = ".staging"
	trashDir   = ".trash"
	lockFile   = ".lock"
)

// Filesystem is a Sink over a local directory tree. Output is staged under
// <base>/.staging/<runID>/<table>/ and published by renaming table
// directories into place, which is atomic per table on POSIX filesystems.
type Filesystem struct {
	base string
}

// NewFilesystem creates a filesystem sink rooted at base.
func NewFilesystem(base string) *Filesystem {
	return &Filesystem{base: base}
}

// AcquireRunLock creates the lock file exclusively; an existing lock means
// another run owns the output location.
func (f *Filesystem) AcquireRunLock(_ context.Context, runID string) error {
	if err := os.MkdirAll(f.base, 0o755); err != nil {
		return fmt.Errorf("mkdir base: %w", err)
	}
	path := filepath.Join(f.base, lockFile)
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s exists: %w", path, ErrRunLocked)
		}
		return fmt.Errorf("create lock: %w", err)
	}
	defer fh.Close()
	if _, err := fmt.Fprintf(fh, "%s\n%d\n", runID, os.Getpid()); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}
	return nil
}

// ReleaseRunLock removes the lock file.
func (f *Filesystem) ReleaseRunLock(_ context.Context) error {
	err := os.Remove(filepath.Join(f.base, lockFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}

// Stage opens a staged file for one table.
func (f *Filesystem) Stage(_ context.Context, runID, table, name string) (io.WriteCloser, error) {
	dir := filepath.Join(f.base, stagingDir, runID, table, filepath.Dir(name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir staging: %w", err)
	}
	path := filepath.Join(f.base, stagingDir, runID, table, name)
	fh, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	return fh, nil
}

// Publish swaps each staged table directory into its visible location. The
// previous table directory is parked in trash first so a failed swap can
// roll back; trash and staging are removed only after every table swapped.
func (f *Filesystem) Publish(_ context.Context, runID string, tables []string) (map[string]string, error) {
	staging := filepath.Join(f.base, stagingDir, runID)
	trash := filepath.Join(f.base, trashDir, runID)
	if err := os.MkdirAll(trash, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir trash: %w: %w", err, ErrPublish)
	}

	locations := make(map[string]string, len(tables))
	var swapped []string
	for _, table := range tables {
		staged := filepath.Join(staging, table)
		if _, err := os.Stat(staged); err != nil {
			f.rollback(trash, swapped)
			return nil, fmt.Errorf("table %s was not staged: %w: %w", table, err, ErrPublish)
		}
		visible := filepath.Join(f.base, table)

		if _, err := os.Stat(visible); err == nil {
			if err := os.Rename(visible, filepath.Join(trash, table)); err != nil {
				f.rollback(trash, swapped)
				return nil, fmt.Errorf("park old %s: %w: %w", table, err, ErrPublish)
			}
		}
		if err := os.Rename(staged, visible); err != nil {
			// Restore the parked directory and any earlier swaps.
			_ = os.Rename(filepath.Join(trash, table), visible)
			f.rollback(trash, swapped)
			return nil, fmt.Errorf("swap %s: %w: %w", table, err, ErrPublish)
		}
		swapped = append(swapped, table)
		locations[table] = visible
	}

	// Point of no return: every table is swapped.
	if err := os.RemoveAll(trash); err != nil {
		logging.Warn().Err(err).Str("dir", trash).Msg("Could not remove trash directory")
	}
	if err := os.RemoveAll(staging); err != nil {
		logging.Warn().Err(err).Str("dir", staging).Msg("Could not remove staging directory")
	}
	return locations, nil
}

// rollback restores previously swapped tables from trash after a failed
// publish, so the old snapshot stays fully visible.
func (f *Filesystem) rollback(trash string, swapped []string) {
	for _, table := range swapped {
		visible := filepath.Join(f.base, table)
		parked := filepath.Join(trash, table)
		if err := os.RemoveAll(visible); err != nil {
			logging.Error().Err(err).Str("table", table).Msg("Rollback failed removing new table")
			continue
		}
		if _, err := os.Stat(parked); err != nil {
			continue // table did not exist before this run
		}
		if err := os.Rename(parked, visible); err != nil {
			logging.Error().Err(err).Str("table", table).Msg("Rollback failed restoring old table")
		}
	}
}

// Discard removes all staged artifacts of a run.
func (f *Filesystem) Discard(_ context.Context, runID string) error {
	if err := os.RemoveAll(filepath.Join(f.base, stagingDir, runID)); err != nil {
		return fmt.Errorf("discard staging: %w", err)
	}
	return nil
}
