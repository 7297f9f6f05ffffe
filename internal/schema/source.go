//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package schema defines the source and target entities of the retail star
// schema, the extraction contract for each source entity, and row-level
// validation.
package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source entity names. These are the logical entities the extraction
// adapter knows how to pull; each maps to one normalized OLTP table.
const (
	EntityCustomers    = "customers"
	EntityProductLines = "product_lines"
	EntityProducts     = "products"
	EntityOrders       = "orders"
	EntityOrderDetails = "order_details"
)

// SourceEntities lists all source entities in extraction order.
var SourceEntities = []string{
	EntityCustomers,
	EntityProductLines,
	EntityProducts,
	EntityOrders,
	EntityOrderDetails,
}

// Customer is a normalized source customer row.
type Customer struct {
	CustomerNumber   int64
	CustomerName     string
	ContactLastName  string
	ContactFirstName string
	Phone            string
	AddressLine1     string
	AddressLine2     *string
	City             string
	State            *string
	PostalCode       *string
	Country          string
	CreditLimit      decimal.Decimal
}

// ProductLine is a normalized source product line row.
type ProductLine struct {
	ProductLine     string
	TextDescription *string
}

// Product is a normalized source product row. ProductLine is nullable at
// the source even though referential integrity says it should resolve.
type Product struct {
	ProductCode   string
	ProductName   string
	ProductLine   *string
	ProductScale  string
	ProductVendor string
	MSRP          decimal.Decimal
}

// Order is a normalized source order header row.
type Order struct {
	OrderNumber    int64
	OrderDate      time.Time
	Status         string
	CustomerNumber int64
}

// OrderDetail is a normalized source order line row. Its natural key is
// (OrderNumber, ProductCode).
type OrderDetail struct {
	OrderNumber     int64
	ProductCode     string
	QuantityOrdered int32
	PriceEach       decimal.Decimal
	OrderLineNumber int32
}

// EntityDescriptor describes how one source entity is extracted and the
// exact column shape the extraction must return. Monetary columns are cast
// to text in SQL and parsed into decimals so no float conversion ever
// touches money values.
type EntityDescriptor struct {
	Name    string
	Query   string
	Columns []string
}

// Descriptors holds the extraction descriptor per source entity. Queries
// carry an ORDER BY on the primary key: downstream tie-breaks are defined
// in terms of extraction order, so that order must be reproducible.
var Descriptors = map[string]EntityDescriptor{
	EntityCustomers: {
		Name: EntityCustomers,
		Query: `SELECT customer_number, customer_name, contact_last_name,
                       contact_first_name, phone, address_line1, address_line2,
                       city, state, postal_code, country, credit_limit::text
                FROM customers ORDER BY customer_number`,
		Columns: []string{
			"customer_number", "customer_name", "contact_last_name",
			"contact_first_name", "phone", "address_line1", "address_line2",
			"city", "state", "postal_code", "country", "credit_limit",
		},
	},
	EntityProductLines: {
		Name: EntityProductLines,
		Query: `SELECT product_line, text_description
                FROM product_lines ORDER BY product_line`,
		Columns: []string{"product_line", "text_description"},
	},
	EntityProducts: {
		Name: EntityProducts,
		Query: `SELECT product_code, product_name, product_line, product_scale,
                       product_vendor, msrp::text
                FROM products ORDER BY product_code`,
		Columns: []string{
			"product_code", "product_name", "product_line", "product_scale",
			"product_vendor", "msrp",
		},
	},
	EntityOrders: {
		Name: EntityOrders,
		Query: `SELECT order_number, order_date, status, customer_number
                FROM orders ORDER BY order_number`,
		Columns: []string{"order_number", "order_date", "status", "customer_number"},
	},
	EntityOrderDetails: {
		Name: EntityOrderDetails,
		Query: `SELECT order_number, product_code, quantity_ordered,
                       price_each::text, order_line_number
                FROM order_details ORDER BY order_number, order_line_number`,
		Columns: []string{
			"order_number", "product_code", "quantity_ordered", "price_each",
			"order_line_number",
		},
	},
}
