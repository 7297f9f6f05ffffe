//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package load serializes the star-schema table set to parquet and drives
// the sink's stage-then-publish cycle.
package load

import (
	"context"
	"fmt"
	"sort"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/internal/schema"
	"github.com/edgemart/starlift/internal/sink"
)

// Writer stages parquet output for one run and publishes it atomically.
type Writer struct {
	sink  sink.Sink
	codec compress.Codec
}

// NewWriter creates a load writer on top of a sink. Compression is one of
// snappy, zstd, or none.
func NewWriter(s sink.Sink, compression string) (*Writer, error) {
	var codec compress.Codec
	switch compression {
	case "snappy":
		codec = &parquet.Snappy
	case "zstd":
		codec = &parquet.Zstd
	case "none":
		codec = &parquet.Uncompressed
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
	return &Writer{sink: s, codec: codec}, nil
}

// Stage serializes every target table into the run's staging area. Nothing
// becomes visible until Publish.
//
// Dimensions are written as a single part file per table; fact rows are
// partitioned by order year (fact_orders/order_year=YYYY/part-00000.parquet).
func (w *Writer) Stage(ctx context.Context, runID string, star *schema.Star) error {
	if err := stageTable(ctx, w, runID, schema.TableDimCustomers, "part-00000.parquet", star.DimCustomers); err != nil {
		return err
	}
	if err := stageTable(ctx, w, runID, schema.TableDimProducts, "part-00000.parquet", star.DimProducts); err != nil {
		return err
	}
	if err := stageTable(ctx, w, runID, schema.TableDimLocations, "part-00000.parquet", star.DimLocations); err != nil {
		return err
	}

	for _, part := range partitionFacts(star.FactOrders) {
		name := fmt.Sprintf("order_year=%d/part-00000.parquet", part.year)
		if err := stageTable(ctx, w, runID, schema.TableFactOrders, name, part.rows); err != nil {
			return err
		}
	}
	// A run with zero facts still materializes the (empty) table.
	if len(star.FactOrders) == 0 {
		if err := stageTable(ctx, w, runID, schema.TableFactOrders, "part-00000.parquet", star.FactOrders); err != nil {
			return err
		}
	}

	logging.Debug().
		Str("run_id", runID).
		Int64("facts", int64(len(star.FactOrders))).
		Msg("Staged all target tables")
	return nil
}

// Publish atomically swaps the staged output into visibility and returns
// the visible location per table.
func (w *Writer) Publish(ctx context.Context, runID string) (map[string]string, error) {
	return w.sink.Publish(ctx, runID, schema.TargetTables)
}

// Discard drops the run's staged output.
func (w *Writer) Discard(ctx context.Context, runID string) error {
	return w.sink.Discard(ctx, runID)
}

func stageTable[T any](ctx context.Context, w *Writer, runID, table, name string, rows []T) error {
	out, err := w.sink.Stage(ctx, runID, table, name)
	if err != nil {
		return fmt.Errorf("stage %s/%s: %w", table, name, err)
	}

	pw := parquet.NewGenericWriter[T](out, parquet.Compression(w.codec))
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			out.Close()
			return fmt.Errorf("write %s/%s: %w", table, name, err)
		}
	}
	if err := pw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize %s/%s: %w", table, name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s/%s: %w", table, name, err)
	}

	logging.Debug().
		Str("table", table).
		Str("file", name).
		Int("rows", len(rows)).
		Msg("Staged parquet file")
	return nil
}

type factPartition struct {
	year int
	rows []schema.FactOrder
}

// partitionFacts splits fact rows by order year, years ascending, keeping
// the engine's row order within each partition.
func partitionFacts(facts []schema.FactOrder) []factPartition {
	byYear := make(map[int][]schema.FactOrder)
	for _, f := range facts {
		y := f.OrderDate.Year()
		byYear[y] = append(byYear[y], f)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]factPartition, 0, len(years))
	for _, y := range years {
		out = append(out, factPartition{year: y, rows: byYear[y]})
	}
	return out
}
