//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package config handles configuration management for starlift.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for starlift.
type Config struct {
	// Connection is the PostgreSQL connection string for the OLTP source.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Warehouse holds configuration for the analytical sink.
	Warehouse WarehouseConfig `mapstructure:"warehouse"`

	// Catalog holds configuration for the catalog refresh signal.
	Catalog CatalogConfig `mapstructure:"catalog"`

	// Run holds configuration for the run subcommand.
	Run RunConfig `mapstructure:"run"`

	// Seed holds configuration for the seed subcommand.
	Seed SeedConfig `mapstructure:"seed"`
}

// WarehouseConfig describes where the star-schema output lands.
type WarehouseConfig struct {
	// Path is the warehouse base location. Either a local directory or an
	// s3://bucket/prefix URI.
	Path string `mapstructure:"path"`

	// Region is the AWS region used when Path is an S3 URI.
	Region string `mapstructure:"region"`
}

// CatalogConfig describes the catalog refresh trigger fired after a
// successful publish.
type CatalogConfig struct {
	// Crawler is the name of the AWS Glue crawler to start. Empty disables
	// the refresh signal.
	Crawler string `mapstructure:"crawler"`

	// Region is the AWS region of the crawler (defaults to warehouse.region).
	Region string `mapstructure:"region"`
}

// RunConfig holds configuration for pipeline execution.
type RunConfig struct {
	// ExtractTimeout is the per-entity extraction timeout in seconds.
	ExtractTimeout int `mapstructure:"extract_timeout"`

	// RetryAttempts is how many times extraction is retried when the
	// source is unavailable.
	RetryAttempts int `mapstructure:"retry_attempts"`

	// RetryBackoff is the initial retry backoff in seconds; it doubles on
	// each subsequent attempt.
	RetryBackoff int `mapstructure:"retry_backoff"`

	// Compression is the parquet compression codec (snappy, zstd, none).
	Compression string `mapstructure:"compression"`
}

// SeedConfig holds configuration for source database seeding.
type SeedConfig struct {
	// Customers is the number of customers to generate.
	Customers int `mapstructure:"customers"`

	// Products is the number of products to generate.
	Products int `mapstructure:"products"`

	// Orders is the number of orders to generate.
	Orders int `mapstructure:"orders"`

	// MaxOrderLines is the maximum number of lines per order.
	MaxOrderLines int `mapstructure:"max_order_lines"`

	// Dangling is the number of order lines generated with an order
	// reference that does not resolve, for exercising exclusion accounting.
	Dangling int `mapstructure:"dangling"`

	// RandomSeed seeds the data generator for reproducible runs (0 = random).
	RandomSeed uint64 `mapstructure:"random_seed"`

	// DropExisting drops existing source tables before seeding.
	DropExisting bool `mapstructure:"drop_existing"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Run: RunConfig{
			ExtractTimeout: 60,
			RetryAttempts:  3,
			RetryBackoff:   2,
			Compression:    "snappy",
		},
		Seed: SeedConfig{
			Customers:     200,
			Products:      120,
			Orders:        1000,
			MaxOrderLines: 5,
			DropExisting:  false,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./starlift.yaml
// 3. ~/.config/starlift/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set config name and type
	v.SetConfigName("starlift")
	v.SetConfigType("yaml")

	// Add config paths
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "starlift"))
	}

	// Use specific config file if provided
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Start with defaults
	cfg := DefaultConfig()

	// Unmarshal config file values
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Warehouse.Path == "" {
		return fmt.Errorf("warehouse path is required")
	}
	if c.Warehouse.IsS3() && c.Warehouse.Region == "" {
		return fmt.Errorf("warehouse region is required for S3 paths")
	}
	if c.Run.ExtractTimeout < 1 {
		return fmt.Errorf("extract_timeout must be at least 1 second")
	}
	if c.Run.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be non-negative")
	}
	if c.Run.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must be non-negative")
	}
	switch c.Run.Compression {
	case "snappy", "zstd", "none":
	default:
		return fmt.Errorf("compression must be 'snappy', 'zstd', or 'none'")
	}
	return nil
}

// ValidateSeed checks configuration required for the seed command.
func (c *Config) ValidateSeed() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Seed.Customers < 1 {
		return fmt.Errorf("customers must be at least 1")
	}
	if c.Seed.Products < 1 {
		return fmt.Errorf("products must be at least 1")
	}
	if c.Seed.Orders < 0 {
		return fmt.Errorf("orders must be non-negative")
	}
	if c.Seed.MaxOrderLines < 1 {
		return fmt.Errorf("max_order_lines must be at least 1")
	}
	if c.Seed.Dangling < 0 {
		return fmt.Errorf("dangling must be non-negative")
	}
	return nil
}

// IsS3 reports whether the warehouse path refers to an S3 location.
func (w WarehouseConfig) IsS3() bool {
	return strings.HasPrefix(w.Path, "s3://")
}

// S3Bucket splits an s3:// path into bucket and key prefix.
func (w WarehouseConfig) S3Bucket() (bucket, prefix string) {
	trimmed := strings.TrimPrefix(w.Path, "s3://")
	bucket, prefix, _ = strings.Cut(trimmed, "/")
	return bucket, strings.Trim(prefix, "/")
}
