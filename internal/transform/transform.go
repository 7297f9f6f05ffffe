//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package transform derives the star-schema target tables from an extracted
// source snapshot. The engine performs no I/O: given identical snapshots it
// produces identical output.
package transform

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/internal/schema"
)

// Skip reasons for fact rows excluded by the inner-join chain.
const (
	SkipMissingOrder    = "missing order"
	SkipMissingProduct  = "missing product"
	SkipMissingCustomer = "missing customer"
	SkipMissingPostal   = "missing postal code"
)

// Stats accounts for everything the engine dropped or tie-broke. Excluded
// fact rows are counted, never silently lost:
// Skipped[fact_orders] + len(FactOrders) == len(OrderDetails).
type Stats struct {
	// Skipped maps target table name to rows excluded during derivation.
	// Only fact_orders can skip; dimension derivations never shrink.
	Skipped map[string]int64

	// SkipReasons breaks the fact_orders skip count down by cause.
	SkipReasons map[string]int64

	// ConflictingPostalCodes lists postal codes whose customer rows
	// disagreed on city/state/country. The first-encountered tuple won.
	ConflictingPostalCodes []string
}

// Result is the output of one transformation: the complete target table set
// plus accounting and advisory validation findings.
type Result struct {
	Star       *schema.Star
	Stats      Stats
	Violations []schema.Violation
}

// fatalReasons are validation findings that make the snapshot unusable:
// they break the one-row-per-key invariants of the target dimensions.
var fatalReasons = map[string]bool{
	"duplicate customer number": true,
	"duplicate product line":    true,
	"duplicate product code":    true,
	"duplicate order number":    true,
	"duplicate order line":      true,
	"empty product code":        true,
	"empty product line key":    true,
}

// Build derives the four target tables from the snapshot. It fails only on
// schema-level violations of the key invariants; data-quality findings are
// returned for reporting and resolved by the documented exclusion and
// tie-break rules.
func Build(snap *schema.Snapshot) (*Result, error) {
	violations := schema.Validate(snap)
	var advisory []schema.Violation
	for _, v := range violations {
		if fatalReasons[v.Reason] {
			return nil, fmt.Errorf("source snapshot violates key invariants (%s): %w",
				v, schema.ErrMismatch)
		}
		advisory = append(advisory, v)
	}

	// Shared read-only lookup structures for the join chain.
	customersByNumber := make(map[int64]*schema.Customer, len(snap.Customers))
	for i := range snap.Customers {
		customersByNumber[snap.Customers[i].CustomerNumber] = &snap.Customers[i]
	}
	linesByKey := make(map[string]*schema.ProductLine, len(snap.ProductLines))
	for i := range snap.ProductLines {
		linesByKey[snap.ProductLines[i].ProductLine] = &snap.ProductLines[i]
	}
	productsByCode := make(map[string]struct{}, len(snap.Products))
	for i := range snap.Products {
		productsByCode[snap.Products[i].ProductCode] = struct{}{}
	}
	ordersByNumber := make(map[int64]*schema.Order, len(snap.Orders))
	for i := range snap.Orders {
		ordersByNumber[snap.Orders[i].OrderNumber] = &snap.Orders[i]
	}

	res := &Result{
		Star: &schema.Star{},
		Stats: Stats{
			Skipped:     make(map[string]int64, len(schema.TargetTables)),
			SkipReasons: make(map[string]int64),
		},
		Violations: advisory,
	}
	for _, table := range schema.TargetTables {
		res.Stats.Skipped[table] = 0
	}

	// The derivations are independent and write disjoint fields; the group
	// wait is the join barrier before anything is handed to the writer.
	var g errgroup.Group
	g.Go(func() error {
		res.Star.DimCustomers = deriveDimCustomers(snap.Customers)
		return nil
	})
	g.Go(func() error {
		res.Star.DimProducts = deriveDimProducts(snap.Products, linesByKey)
		return nil
	})
	g.Go(func() error {
		res.Star.DimLocations, res.Stats.ConflictingPostalCodes =
			deriveDimLocations(snap.Customers)
		return nil
	})
	g.Go(func() error {
		var skipped map[string]int64
		res.Star.FactOrders, skipped = deriveFactOrders(
			snap.OrderDetails, ordersByNumber, customersByNumber, productsByCode)
		res.Stats.SkipReasons = skipped
		return nil
	})
	_ = g.Wait()

	for _, n := range res.Stats.SkipReasons {
		res.Stats.Skipped[schema.TableFactOrders] += n
	}

	for _, pc := range res.Stats.ConflictingPostalCodes {
		logging.Warn().
			Str("postal_code", pc).
			Msg("Conflicting location tuples for postal code; keeping first encountered")
	}

	return res, nil
}

// deriveDimCustomers is a straight 1:1 projection of the customer rows.
func deriveDimCustomers(customers []schema.Customer) []schema.DimCustomer {
	out := make([]schema.DimCustomer, 0, len(customers))
	for _, c := range customers {
		out = append(out, schema.DimCustomer{
			CustomerKey:      c.CustomerNumber,
			CustomerName:     c.CustomerName,
			ContactLastName:  c.ContactLastName,
			ContactFirstName: c.ContactFirstName,
			Phone:            c.Phone,
			AddressLine1:     c.AddressLine1,
			AddressLine2:     deref(c.AddressLine2),
			City:             c.City,
			State:            deref(c.State),
			PostalCode:       deref(c.PostalCode),
			Country:          c.Country,
			CreditLimit:      schema.Money(c.CreditLimit),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerKey < out[j].CustomerKey })
	return out
}

// deriveDimProducts left-joins products to their line description. A
// product whose line is missing keeps an empty description; the join never
// shrinks the product count.
func deriveDimProducts(products []schema.Product, lines map[string]*schema.ProductLine) []schema.DimProduct {
	out := make([]schema.DimProduct, 0, len(products))
	for _, p := range products {
		row := schema.DimProduct{
			ProductKey:    p.ProductCode,
			ProductName:   p.ProductName,
			ProductLine:   deref(p.ProductLine),
			ProductScale:  p.ProductScale,
			ProductVendor: p.ProductVendor,
			MSRP:          schema.Money(p.MSRP),
		}
		if p.ProductLine != nil {
			if pl, ok := lines[*p.ProductLine]; ok {
				row.LineDescription = deref(pl.TextDescription)
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductKey < out[j].ProductKey })
	return out
}

// deriveDimLocations builds the distinct postal code -> (city, state,
// country) set from the customer rows. On conflicting tuples for the same
// postal code the first-encountered tuple (in extraction order) wins and
// the postal code is reported.
func deriveDimLocations(customers []schema.Customer) ([]schema.DimLocation, []string) {
	byPostal := make(map[string]schema.DimLocation, len(customers))
	var order []string
	var conflicts []string
	conflicted := make(map[string]bool)

	for _, c := range customers {
		if c.PostalCode == nil || *c.PostalCode == "" {
			// Reported as a validation finding; no location row possible.
			continue
		}
		loc := schema.DimLocation{
			PostalCode: *c.PostalCode,
			City:       c.City,
			State:      deref(c.State),
			Country:    c.Country,
		}
		prev, seen := byPostal[loc.PostalCode]
		if !seen {
			byPostal[loc.PostalCode] = loc
			order = append(order, loc.PostalCode)
			continue
		}
		if prev != loc && !conflicted[loc.PostalCode] {
			conflicted[loc.PostalCode] = true
			conflicts = append(conflicts, loc.PostalCode)
		}
	}

	out := make([]schema.DimLocation, 0, len(order))
	for _, pc := range order {
		out = append(out, byPostal[pc])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostalCode < out[j].PostalCode })
	return out, conflicts
}

// deriveFactOrders inner-joins order lines through order and customer to
// the location key. Lines whose references do not resolve are excluded and
// counted by reason.
func deriveFactOrders(
	details []schema.OrderDetail,
	orders map[int64]*schema.Order,
	customers map[int64]*schema.Customer,
	products map[string]struct{},
) ([]schema.FactOrder, map[string]int64) {
	out := make([]schema.FactOrder, 0, len(details))
	skipped := make(map[string]int64)

	for _, d := range details {
		order, ok := orders[d.OrderNumber]
		if !ok {
			skipped[SkipMissingOrder]++
			continue
		}
		if _, ok := products[d.ProductCode]; !ok {
			skipped[SkipMissingProduct]++
			continue
		}
		customer, ok := customers[order.CustomerNumber]
		if !ok {
			skipped[SkipMissingCustomer]++
			continue
		}
		if customer.PostalCode == nil || *customer.PostalCode == "" {
			skipped[SkipMissingPostal]++
			continue
		}

		amount := d.PriceEach.Mul(decimal.NewFromInt32(d.QuantityOrdered))
		out = append(out, schema.FactOrder{
			OrderNumber: d.OrderNumber,
			LineNumber:  d.OrderLineNumber,
			OrderDate:   order.OrderDate,
			CustomerKey: customer.CustomerNumber,
			ProductKey:  d.ProductCode,
			PostalCode:  *customer.PostalCode,
			Quantity:    d.QuantityOrdered,
			UnitPrice:   schema.Money(d.PriceEach),
			OrderAmount: schema.Money(amount),
		})
	}
	return out, skipped
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
