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
	"time"

	"github.com/shopspring/decimal"
)

// Target table names. The load writer materializes one directory per table
// under the warehouse base path.
const (
	TableDimCustomers = "dim_customers"
	TableDimProducts  = "dim_products"
	TableDimLocations = "dim_locations"
	TableFactOrders   = "fact_orders"
)

// TargetTables lists all target tables.
var TargetTables = []string{
	TableDimCustomers,
	TableDimProducts,
	TableDimLocations,
	TableFactOrders,
}

// MoneyScale is the decimal scale used for all monetary parquet columns.
const MoneyScale = 2

// DimCustomer is one denormalized customer dimension row. The customer
// number is the dimension key.
type DimCustomer struct {
	CustomerKey      int64  `parquet:"customer_key"`
	CustomerName     string `parquet:"customer_name"`
	ContactLastName  string `parquet:"contact_last_name"`
	ContactFirstName string `parquet:"contact_first_name"`
	Phone            string `parquet:"phone"`
	AddressLine1     string `parquet:"address_line1"`
	AddressLine2     string `parquet:"address_line2,optional"`
	City             string `parquet:"city"`
	State            string `parquet:"state,optional"`
	PostalCode       string `parquet:"postal_code,optional"`
	Country          string `parquet:"country"`
	CreditLimit      int64  `parquet:"credit_limit,decimal(2:18)"`
}

// DimProduct is one product dimension row with the product line description
// joined in. A product whose line is missing keeps an empty description
// rather than being dropped.
type DimProduct struct {
	ProductKey      string `parquet:"product_key"`
	ProductName     string `parquet:"product_name"`
	ProductLine     string `parquet:"product_line,optional"`
	LineDescription string `parquet:"line_description,optional"`
	ProductScale    string `parquet:"product_scale"`
	ProductVendor   string `parquet:"product_vendor"`
	MSRP            int64  `parquet:"msrp,decimal(2:18)"`
}

// DimLocation is one location dimension row keyed by postal code.
type DimLocation struct {
	PostalCode string `parquet:"postal_code"`
	City       string `parquet:"city"`
	State      string `parquet:"state,optional"`
	Country    string `parquet:"country"`
}

// FactOrder is one order-line fact row. Keys reference the dimensions
// produced by the same run; measures are exact decimals.
type FactOrder struct {
	OrderNumber int64     `parquet:"order_number"`
	LineNumber  int32     `parquet:"line_number"`
	OrderDate   time.Time `parquet:"order_date,timestamp"`
	CustomerKey int64     `parquet:"customer_key"`
	ProductKey  string    `parquet:"product_key"`
	PostalCode  string    `parquet:"postal_code"`
	Quantity    int32     `parquet:"quantity"`
	UnitPrice   int64     `parquet:"unit_price,decimal(2:18)"`
	OrderAmount int64     `parquet:"order_amount,decimal(2:18)"`
}

// Star is the complete target table set produced by one run.
type Star struct {
	DimCustomers []DimCustomer
	DimProducts  []DimProduct
	DimLocations []DimLocation
	FactOrders   []FactOrder
}

// RowCounts returns the per-table row counts of the star set.
func (s *Star) RowCounts() map[string]int64 {
	return map[string]int64{
		TableDimCustomers: int64(len(s.DimCustomers)),
		TableDimProducts:  int64(len(s.DimProducts)),
		TableDimLocations: int64(len(s.DimLocations)),
		TableFactOrders:   int64(len(s.FactOrders)),
	}
}

// Money converts an exact decimal to the scaled integer representation used
// by the parquet decimal columns.
func Money(d decimal.Decimal) int64 {
	return d.Shift(MoneyScale).Round(0).IntPart()
}

// MoneyDecimal converts a scaled integer back to its decimal value.
func MoneyDecimal(v int64) decimal.Decimal {
	return decimal.New(v, -MoneyScale)
}
