//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for starlift.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/edgemart/starlift/internal/config"
	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/pkg/version"
)

var (
	// Global flags
	cfgFile    string
	connection string
	logLevel   string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "starlift",
		Short: "Star-schema ETL from a normalized retail OLTP database",
		Long: `starlift extracts the normalized retail entities from a PostgreSQL
OLTP database, derives a star schema (customer, product, and location
dimensions plus an order fact table), and publishes it atomically as
parquet to a local directory or an S3 warehouse location.

A run is full-refresh: the published snapshot is replaced as a whole or
not at all. Readers of the warehouse never observe a half-written state.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./starlift.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"PostgreSQL connection string for the OLTP source")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Connection = connection
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: logging.TerminalOutput(),
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}
