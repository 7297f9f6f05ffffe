//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMismatch marks a data contract violation: fetched or derived data does
// not have the shape this model expects. Mismatches are fatal for a run and
// are never retried.
var ErrMismatch = errors.New("schema mismatch")

// MismatchError describes a column-shape mismatch for one entity.
type MismatchError struct {
	Entity string
	Want   []string
	Got    []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("schema mismatch for %s: want columns [%s], got [%s]",
		e.Entity, strings.Join(e.Want, ", "), strings.Join(e.Got, ", "))
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// CheckColumns verifies that the fetched column set matches the descriptor
// for the named entity, in order.
func CheckColumns(entity string, got []string) error {
	desc, ok := Descriptors[entity]
	if !ok {
		return fmt.Errorf("unknown source entity %q: %w", entity, ErrMismatch)
	}
	if len(got) != len(desc.Columns) {
		return &MismatchError{Entity: entity, Want: desc.Columns, Got: got}
	}
	for i, col := range desc.Columns {
		if got[i] != col {
			return &MismatchError{Entity: entity, Want: desc.Columns, Got: got}
		}
	}
	return nil
}

// Violation is a structured row-level validation finding. Violations are
// reported, not thrown; the caller decides whether to fail the run or
// quarantine rows.
type Violation struct {
	Entity string `json:"entity"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s[%s]: %s", v.Entity, v.Key, v.Reason)
}

// Snapshot is the full extracted source row set a single run operates on.
// Slice order is extraction order and is load-bearing for tie-breaks.
type Snapshot struct {
	Customers    []Customer
	ProductLines []ProductLine
	Products     []Product
	Orders       []Order
	OrderDetails []OrderDetail
}

// Validate runs all row-level checks over a snapshot and returns the
// violations found. An empty result means the snapshot is clean.
func Validate(s *Snapshot) []Violation {
	var out []Violation
	out = append(out, ValidateCustomers(s.Customers)...)
	out = append(out, ValidateProductLines(s.ProductLines)...)
	out = append(out, ValidateProducts(s.Products)...)
	out = append(out, ValidateOrders(s.Orders)...)
	out = append(out, ValidateOrderDetails(s.OrderDetails)...)
	return out
}

// ValidateCustomers checks customer rows. A missing postal code is reported
// because such a customer can never satisfy the location join.
func ValidateCustomers(rows []Customer) []Violation {
	var out []Violation
	seen := make(map[int64]struct{}, len(rows))
	for _, c := range rows {
		key := fmt.Sprintf("%d", c.CustomerNumber)
		if _, dup := seen[c.CustomerNumber]; dup {
			out = append(out, Violation{EntityCustomers, key, "duplicate customer number"})
		}
		seen[c.CustomerNumber] = struct{}{}
		if c.CustomerName == "" {
			out = append(out, Violation{EntityCustomers, key, "empty customer name"})
		}
		if c.PostalCode == nil || *c.PostalCode == "" {
			out = append(out, Violation{EntityCustomers, key, "missing postal code"})
		}
	}
	return out
}

// ValidateProductLines checks product line rows.
func ValidateProductLines(rows []ProductLine) []Violation {
	var out []Violation
	seen := make(map[string]struct{}, len(rows))
	for _, pl := range rows {
		if pl.ProductLine == "" {
			out = append(out, Violation{EntityProductLines, "", "empty product line key"})
			continue
		}
		if _, dup := seen[pl.ProductLine]; dup {
			out = append(out, Violation{EntityProductLines, pl.ProductLine, "duplicate product line"})
		}
		seen[pl.ProductLine] = struct{}{}
	}
	return out
}

// ValidateProducts checks product rows.
func ValidateProducts(rows []Product) []Violation {
	var out []Violation
	seen := make(map[string]struct{}, len(rows))
	for _, p := range rows {
		if p.ProductCode == "" {
			out = append(out, Violation{EntityProducts, "", "empty product code"})
			continue
		}
		if _, dup := seen[p.ProductCode]; dup {
			out = append(out, Violation{EntityProducts, p.ProductCode, "duplicate product code"})
		}
		seen[p.ProductCode] = struct{}{}
		if p.MSRP.IsNegative() {
			out = append(out, Violation{EntityProducts, p.ProductCode, "negative msrp"})
		}
	}
	return out
}

// ValidateOrders checks order header rows.
func ValidateOrders(rows []Order) []Violation {
	var out []Violation
	seen := make(map[int64]struct{}, len(rows))
	for _, o := range rows {
		key := fmt.Sprintf("%d", o.OrderNumber)
		if _, dup := seen[o.OrderNumber]; dup {
			out = append(out, Violation{EntityOrders, key, "duplicate order number"})
		}
		seen[o.OrderNumber] = struct{}{}
		if o.CustomerNumber == 0 {
			out = append(out, Violation{EntityOrders, key, "missing customer reference"})
		}
		if o.OrderDate.IsZero() {
			out = append(out, Violation{EntityOrders, key, "missing order date"})
		}
	}
	return out
}

// ValidateOrderDetails checks order line rows.
func ValidateOrderDetails(rows []OrderDetail) []Violation {
	var out []Violation
	seen := make(map[string]struct{}, len(rows))
	for _, d := range rows {
		key := fmt.Sprintf("%d/%s", d.OrderNumber, d.ProductCode)
		if _, dup := seen[key]; dup {
			out = append(out, Violation{EntityOrderDetails, key, "duplicate order line"})
		}
		seen[key] = struct{}{}
		if d.QuantityOrdered <= 0 {
			out = append(out, Violation{EntityOrderDetails, key, "non-positive quantity"})
		}
		if d.PriceEach.IsNegative() {
			out = append(out, Violation{EntityOrderDetails, key, "negative unit price"})
		}
	}
	return out
}
