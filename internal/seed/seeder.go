//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

package seed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgemart/starlift/internal/config"
	"github.com/edgemart/starlift/internal/datagen"
	"github.com/edgemart/starlift/internal/db"
	"github.com/edgemart/starlift/internal/logging"
)

// Classic retail product lines.
var productLines = []string{
	"Classic Cars", "Motorcycles", "Planes", "Ships",
	"Trains", "Trucks and Buses", "Vintage Cars",
}

var productScales = []string{"1:10", "1:12", "1:18", "1:24", "1:32", "1:50", "1:72", "1:700"}

var orderStatuses = []string{"Shipped", "In Process", "On Hold", "Cancelled", "Resolved", "Disputed"}
var orderStatusWeights = []float32{0.80, 0.07, 0.04, 0.04, 0.03, 0.02}

// Base numbers mirror the classic sample dataset so generated keys look
// like real OLTP identifiers rather than dense sequences from 1.
const (
	firstCustomerNumber = 103
	firstOrderNumber    = 10100
)

// Seeder generates normalized source data for the retail OLTP schema.
type Seeder struct {
	faker *datagen.Faker
	cfg   datagen.BatchInsertConfig
	opts  config.SeedConfig
}

// NewSeeder creates a seeder. A non-zero RandomSeed makes the generated
// dataset reproducible.
func NewSeeder(opts config.SeedConfig) *Seeder {
	faker := datagen.NewFaker()
	if opts.RandomSeed != 0 {
		faker = datagen.NewFakerWithSeed(opts.RandomSeed)
	}
	return &Seeder{
		faker: faker,
		cfg:   datagen.DefaultBatchConfig(),
		opts:  opts,
	}
}

// Seed creates the source schema (dropping it first when configured) and
// populates it with generated data, including any requested dangling order
// lines.
func (s *Seeder) Seed(ctx context.Context, pool *pgxpool.Pool) error {
	if s.opts.DropExisting {
		logging.Info().Msg("Dropping existing source schema")
		if err := DropSchema(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
	}
	if err := CreateSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().
		Int("customers", s.opts.Customers).
		Int("products", s.opts.Products).
		Int("orders", s.opts.Orders).
		Int("dangling", s.opts.Dangling).
		Msg("Seeding source database")

	if err := s.seedProductLines(ctx, pool); err != nil {
		return fmt.Errorf("failed to seed product_lines: %w", err)
	}
	productCodes, err := s.seedProducts(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	if err := s.seedCustomers(ctx, pool); err != nil {
		return fmt.Errorf("failed to seed customers: %w", err)
	}
	if err := s.seedOrders(ctx, pool); err != nil {
		return fmt.Errorf("failed to seed orders: %w", err)
	}
	lineCount, err := s.seedOrderDetails(ctx, pool, productCodes)
	if err != nil {
		return fmt.Errorf("failed to seed order_details: %w", err)
	}

	return db.SaveSeedMetadata(ctx, pool, map[string]string{
		"customers":     strconv.Itoa(s.opts.Customers),
		"products":      strconv.Itoa(s.opts.Products),
		"orders":        strconv.Itoa(s.opts.Orders),
		"order_details": strconv.Itoa(lineCount),
		"dangling":      strconv.Itoa(s.opts.Dangling),
	})
}

func (s *Seeder) seedProductLines(ctx context.Context, pool *pgxpool.Pool) error {
	batch := make([]string, 0, len(productLines))
	for _, line := range productLines {
		batch = append(batch, fmt.Sprintf("('%s', '%s')",
			escapeSingleQuote(line),
			escapeSingleQuote(s.faker.Sentence(12)),
		))
	}
	if err := s.executeBatchInsert(ctx, pool, "product_lines",
		"(product_line, text_description)", batch); err != nil {
		return err
	}
	logging.Info().Int("count", len(productLines)).Msg("product_lines complete")
	return nil
}

func (s *Seeder) seedProducts(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	codes := make([]string, 0, s.opts.Products)
	batch := make([]string, 0, s.cfg.BatchSize)

	for i := 0; i < s.opts.Products; i++ {
		code := fmt.Sprintf("S%02d_%04d", i%100, 1000+i)
		codes = append(codes, code)

		// An occasional product carries no product line; the product
		// dimension keeps such rows with an empty line.
		lineVal := "NULL"
		if s.faker.Int(1, 100) > 3 {
			lineVal = fmt.Sprintf("'%s'", escapeSingleQuote(datagen.Choose(s.faker, productLines)))
		}

		batch = append(batch, fmt.Sprintf("('%s', '%s', %s, '%s', '%s', %.2f)",
			code,
			escapeSingleQuote(datagen.Truncate(s.faker.ProductName(), 70)),
			lineVal,
			datagen.Choose(s.faker, productScales),
			escapeSingleQuote(datagen.Truncate(s.faker.Company(), 50)),
			s.faker.Price(15, 220),
		))

		if len(batch) >= s.cfg.BatchSize {
			if err := s.executeBatchInsert(ctx, pool, "products",
				"(product_code, product_name, product_line, product_scale, product_vendor, msrp)", batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.executeBatchInsert(ctx, pool, "products",
			"(product_code, product_name, product_line, product_scale, product_vendor, msrp)", batch); err != nil {
			return nil, err
		}
	}
	logging.Info().Int("count", len(codes)).Msg("products complete")
	return codes, nil
}

func (s *Seeder) seedCustomers(ctx context.Context, pool *pgxpool.Pool) error {
	batch := make([]string, 0, s.cfg.BatchSize)
	progress := datagen.NewProgressReporter("customers", int64(s.opts.Customers), s.cfg.ProgressInterval)

	for i := 0; i < s.opts.Customers; i++ {
		number := firstCustomerNumber + i

		addr2 := "NULL"
		if s.faker.Int(1, 100) <= 20 {
			addr2 = fmt.Sprintf("'Suite %d'", s.faker.Int(100, 999))
		}
		state := fmt.Sprintf("'%s'", s.faker.StateAbbr())
		if s.faker.Int(1, 100) <= 10 {
			state = "NULL"
		}
		// A small fraction of customers has no postal code; their orders
		// cannot resolve to a location and are excluded from the facts.
		postal := fmt.Sprintf("'%s'", s.faker.Zip())
		if s.faker.Int(1, 100) <= 5 {
			postal = "NULL"
		}

		batch = append(batch, fmt.Sprintf("(%d, '%s', '%s', '%s', '%s', '%s', %s, '%s', %s, %s, 'USA', %.2f)",
			number,
			escapeSingleQuote(datagen.Truncate(s.faker.Company(), 50)),
			escapeSingleQuote(datagen.Truncate(s.faker.LastName(), 50)),
			escapeSingleQuote(datagen.Truncate(s.faker.FirstName(), 50)),
			escapeSingleQuote(datagen.Truncate(s.faker.Phone(), 50)),
			escapeSingleQuote(datagen.Truncate(s.faker.Street(), 50)),
			addr2,
			escapeSingleQuote(datagen.Truncate(s.faker.City(), 50)),
			state,
			postal,
			s.faker.Price(10000, 150000),
		))

		if len(batch) >= s.cfg.BatchSize {
			if err := s.executeBatchInsert(ctx, pool, "customers",
				"(customer_number, customer_name, contact_last_name, contact_first_name, phone, address_line1, address_line2, city, state, postal_code, country, credit_limit)", batch); err != nil {
				return err
			}
			progress.Update(int64(len(batch)))
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.executeBatchInsert(ctx, pool, "customers",
			"(customer_number, customer_name, contact_last_name, contact_first_name, phone, address_line1, address_line2, city, state, postal_code, country, credit_limit)", batch); err != nil {
			return err
		}
		progress.Update(int64(len(batch)))
	}
	progress.Done()
	return nil
}

func (s *Seeder) seedOrders(ctx context.Context, pool *pgxpool.Pool) error {
	batch := make([]string, 0, s.cfg.BatchSize)
	progress := datagen.NewProgressReporter("orders", int64(s.opts.Orders), s.cfg.ProgressInterval)

	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	for i := 0; i < s.opts.Orders; i++ {
		batch = append(batch, fmt.Sprintf("(%d, '%s', '%s', %d)",
			firstOrderNumber+i,
			s.faker.DateRange(start, end).Format("2006-01-02"),
			s.faker.Weighted(orderStatuses, orderStatusWeights),
			firstCustomerNumber+s.faker.Int(0, s.opts.Customers-1),
		))

		if len(batch) >= s.cfg.BatchSize {
			if err := s.executeBatchInsert(ctx, pool, "orders",
				"(order_number, order_date, status, customer_number)", batch); err != nil {
				return err
			}
			progress.Update(int64(len(batch)))
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.executeBatchInsert(ctx, pool, "orders",
			"(order_number, order_date, status, customer_number)", batch); err != nil {
			return err
		}
		progress.Update(int64(len(batch)))
	}
	progress.Done()
	return nil
}

// seedOrderDetails generates 1..MaxOrderLines distinct-product lines per
// order, plus the configured number of dangling lines pointing at order
// numbers that do not exist. Returns the total line count.
func (s *Seeder) seedOrderDetails(ctx context.Context, pool *pgxpool.Pool, productCodes []string) (int, error) {
	batch := make([]string, 0, s.cfg.BatchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.executeBatchInsert(ctx, pool, "order_details",
			"(order_number, product_code, quantity_ordered, price_each, order_line_number)", batch)
		batch = batch[:0]
		return err
	}

	appendLine := func(orderNumber int, code string, lineNumber int) error {
		batch = append(batch, fmt.Sprintf("(%d, '%s', %d, %.2f, %d)",
			orderNumber,
			code,
			s.faker.Int(1, 50),
			s.faker.Price(15, 220),
			lineNumber,
		))
		total++
		if len(batch) >= s.cfg.BatchSize {
			return flush()
		}
		return nil
	}

	for i := 0; i < s.opts.Orders; i++ {
		orderNumber := firstOrderNumber + i
		lines := s.faker.Int(1, s.opts.MaxOrderLines)

		// Pick distinct products for the order; (order, product) is the
		// natural key of a line.
		start := s.faker.Int(0, len(productCodes)-1)
		if lines > len(productCodes) {
			lines = len(productCodes)
		}
		for l := 0; l < lines; l++ {
			code := productCodes[(start+l)%len(productCodes)]
			if err := appendLine(orderNumber, code, l+1); err != nil {
				return 0, err
			}
		}
	}

	// Dangling lines reference order numbers past the generated range.
	for i := 0; i < s.opts.Dangling; i++ {
		orderNumber := firstOrderNumber + s.opts.Orders + 1 + i
		code := datagen.Choose(s.faker, productCodes)
		if err := appendLine(orderNumber, code, 1); err != nil {
			return 0, err
		}
	}

	if err := flush(); err != nil {
		return 0, err
	}
	logging.Info().Int("count", total).Msg("order_details complete")
	return total, nil
}

func (s *Seeder) executeBatchInsert(ctx context.Context, pool *pgxpool.Pool, table, columns string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	sql := fmt.Sprintf("INSERT INTO %s %s VALUES %s", table, columns, strings.Join(values, ", "))
	_, err := pool.Exec(ctx, sql)
	return err
}

func escapeSingleQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
