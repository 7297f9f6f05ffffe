//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/pkg/version"
)

const metadataTable = "starlift_metadata"

// createMetadataTableSQL creates the metadata table if it doesn't exist.
const createMetadataTableSQL = `
CREATE TABLE IF NOT EXISTS starlift_metadata (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// SaveSeedMetadata records seeding provenance in the source database so a
// later run can log what it is extracting from.
func SaveSeedMetadata(ctx context.Context, pool *pgxpool.Pool, values map[string]string) error {
	_, err := pool.Exec(ctx, createMetadataTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}

	metadata := map[string]string{
		"version":   version.Short(),
		"seeded_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range values {
		metadata[k] = v
	}

	for key, value := range metadata {
		_, err := pool.Exec(ctx, `
            INSERT INTO starlift_metadata (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
        `, key, value)
		if err != nil {
			return fmt.Errorf("failed to save metadata %s: %w", key, err)
		}
	}

	logging.Debug().Msg("Saved seed metadata")
	return nil
}

// GetAllMetadata retrieves all metadata as a map. Returns an empty map when
// the metadata table does not exist (source not seeded by starlift).
func GetAllMetadata(ctx context.Context, pool *pgxpool.Pool) (map[string]string, error) {
	exists, err := metadataExists(ctx, pool)
	if err != nil {
		return nil, err
	}
	metadata := make(map[string]string)
	if !exists {
		return metadata, nil
	}

	rows, err := pool.Query(ctx, `SELECT key, value FROM starlift_metadata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		metadata[key] = value
	}

	return metadata, rows.Err()
}

// DropMetadata drops the metadata table.
func DropMetadata(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", metadataTable))
	return err
}

func metadataExists(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_name = $1
        )
    `, metadataTable).Scan(&exists)
	return exists, err
}
