//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package seed creates and populates the normalized OLTP source schema
// with generated retail data.
package seed

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema SQL for the normalized retail source. Foreign keys are deliberately
// omitted so referential gaps (dangling order lines) can be injected to
// exercise downstream exclusion accounting.
const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS product_lines (
    product_line     VARCHAR(50) PRIMARY KEY,
    text_description VARCHAR(4000)
);

CREATE TABLE IF NOT EXISTS customers (
    customer_number    INTEGER PRIMARY KEY,
    customer_name      VARCHAR(50) NOT NULL,
    contact_last_name  VARCHAR(50) NOT NULL,
    contact_first_name VARCHAR(50) NOT NULL,
    phone              VARCHAR(50) NOT NULL,
    address_line1      VARCHAR(50) NOT NULL,
    address_line2      VARCHAR(50),
    city               VARCHAR(50) NOT NULL,
    state              VARCHAR(50),
    postal_code        VARCHAR(15),
    country            VARCHAR(50) NOT NULL,
    credit_limit       NUMERIC(10,2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
    product_code   VARCHAR(15) PRIMARY KEY,
    product_name   VARCHAR(70) NOT NULL,
    product_line   VARCHAR(50),
    product_scale  VARCHAR(10) NOT NULL,
    product_vendor VARCHAR(50) NOT NULL,
    msrp           NUMERIC(10,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    order_number    INTEGER PRIMARY KEY,
    order_date      DATE NOT NULL,
    status          VARCHAR(15) NOT NULL,
    customer_number INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS order_details (
    order_number      INTEGER NOT NULL,
    product_code      VARCHAR(15) NOT NULL,
    quantity_ordered  INTEGER NOT NULL,
    price_each        NUMERIC(10,2) NOT NULL,
    order_line_number SMALLINT NOT NULL,
    PRIMARY KEY (order_number, product_code)
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_number);
CREATE INDEX IF NOT EXISTS idx_order_details_product ON order_details(product_code);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS order_details CASCADE;
DROP TABLE IF EXISTS orders CASCADE;
DROP TABLE IF EXISTS products CASCADE;
DROP TABLE IF EXISTS customers CASCADE;
DROP TABLE IF EXISTS product_lines CASCADE;
`

// CreateSchema creates the source database schema.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the source database schema.
func DropSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, dropSchemaSQL)
	return err
}
