//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package extract pulls the full row set of every source entity from the
// OLTP database. It is a thin boundary: no transformation happens here, but
// every fetched column set is checked against the schema model before any
// row is scanned.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/internal/schema"
)

// ErrSourceUnavailable marks an extraction that could not reach or read the
// source. The orchestrator retries these a bounded number of times.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source extracts a snapshot of the five source entities.
type Source interface {
	Snapshot(ctx context.Context) (*schema.Snapshot, error)
}

// Extractor is a Source over a pgx connection pool.
type Extractor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// New creates an extractor. timeout bounds each entity extraction; on
// expiry the extraction fails as source-unavailable instead of hanging.
func New(pool *pgxpool.Pool, timeout time.Duration) *Extractor {
	return &Extractor{pool: pool, timeout: timeout}
}

// Snapshot extracts all five entities in parallel and returns the combined
// snapshot. The entities share no state and target a read-only source, so
// ordering between them is irrelevant; the group wait is the barrier before
// transformation starts.
func (e *Extractor) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	started := time.Now()
	snap := &schema.Snapshot{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Customers, err = extractEntity(ctx, e, schema.EntityCustomers, scanCustomer)
		return err
	})
	g.Go(func() (err error) {
		snap.ProductLines, err = extractEntity(ctx, e, schema.EntityProductLines, scanProductLine)
		return err
	})
	g.Go(func() (err error) {
		snap.Products, err = extractEntity(ctx, e, schema.EntityProducts, scanProduct)
		return err
	})
	g.Go(func() (err error) {
		snap.Orders, err = extractEntity(ctx, e, schema.EntityOrders, scanOrder)
		return err
	})
	g.Go(func() (err error) {
		snap.OrderDetails, err = extractEntity(ctx, e, schema.EntityOrderDetails, scanOrderDetail)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.Info().
		Int("customers", len(snap.Customers)).
		Int("product_lines", len(snap.ProductLines)).
		Int("products", len(snap.Products)).
		Int("orders", len(snap.Orders)).
		Int("order_details", len(snap.OrderDetails)).
		Dur("elapsed", time.Since(started)).
		Msg("Extracted source snapshot")
	return snap, nil
}

func extractEntity[T any](ctx context.Context, e *Extractor, entity string, scan func(pgx.Rows) (T, error)) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	desc := schema.Descriptors[entity]
	rows, err := e.pool.Query(ctx, desc.Query)
	if err != nil {
		return nil, classify(entity, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	if err := schema.CheckColumns(entity, names); err != nil {
		return nil, err
	}

	var out []T
	for rows.Next() {
		row, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row %d: %w: %w",
				entity, len(out), err, schema.ErrMismatch)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(entity, err)
	}
	return out, nil
}

// classify maps a database error onto the run failure taxonomy: a missing
// table or column is a data contract violation, everything else is the
// source being unreachable.
func classify(entity string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01", "42703": // undefined table, undefined column
			return fmt.Errorf("%s: %s: %w", entity, pgErr.Message, schema.ErrMismatch)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: extraction timed out: %w", entity, ErrSourceUnavailable)
	}
	return fmt.Errorf("%s: %v: %w", entity, err, ErrSourceUnavailable)
}

func scanCustomer(rows pgx.Rows) (schema.Customer, error) {
	var c schema.Customer
	var credit *string
	err := rows.Scan(&c.CustomerNumber, &c.CustomerName, &c.ContactLastName,
		&c.ContactFirstName, &c.Phone, &c.AddressLine1, &c.AddressLine2,
		&c.City, &c.State, &c.PostalCode, &c.Country, &credit)
	if err != nil {
		return c, err
	}
	c.CreditLimit, err = parseMoney(credit)
	return c, err
}

func scanProductLine(rows pgx.Rows) (schema.ProductLine, error) {
	var pl schema.ProductLine
	err := rows.Scan(&pl.ProductLine, &pl.TextDescription)
	return pl, err
}

func scanProduct(rows pgx.Rows) (schema.Product, error) {
	var p schema.Product
	var msrp *string
	err := rows.Scan(&p.ProductCode, &p.ProductName, &p.ProductLine,
		&p.ProductScale, &p.ProductVendor, &msrp)
	if err != nil {
		return p, err
	}
	p.MSRP, err = parseMoney(msrp)
	return p, err
}

func scanOrder(rows pgx.Rows) (schema.Order, error) {
	var o schema.Order
	err := rows.Scan(&o.OrderNumber, &o.OrderDate, &o.Status, &o.CustomerNumber)
	return o, err
}

func scanOrderDetail(rows pgx.Rows) (schema.OrderDetail, error) {
	var d schema.OrderDetail
	var price *string
	err := rows.Scan(&d.OrderNumber, &d.ProductCode, &d.QuantityOrdered,
		&price, &d.OrderLineNumber)
	if err != nil {
		return d, err
	}
	d.PriceEach, err = parseMoney(price)
	return d, err
}

// parseMoney parses a monetary column cast to text at the source. NULL
// parses as zero.
func parseMoney(s *string) (decimal.Decimal, error) {
	if s == nil || *s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad numeric %q: %w", *s, err)
	}
	return d, nil
}
