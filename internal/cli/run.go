package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edgemart/starlift/internal/catalog"
	"github.com/edgemart/starlift/internal/config"
	"github.com/edgemart/starlift/internal/db"
	"github.com/edgemart/starlift/internal/extract"
	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/internal/pipeline"
	"github.com/edgemart/starlift/internal/sink"
)

var (
	runWarehousePath  string
	runRegion         string
	runCrawler        string
	runExtractTimeout int
	runRetryAttempts  int
	runRetryBackoff   int
	runCompression    string
	runJSONReport     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full-refresh ETL pass from the OLTP source to the warehouse",
	Long: `Run one complete pipeline pass: extract all source entities, derive
the star schema, stage it as parquet, and atomically publish it to the
warehouse location. On any failure the previously published snapshot
remains visible.

Example:
  starlift run --connection "postgres://..." --warehouse /var/warehouse
  starlift run --warehouse s3://analytics/warehouse --region us-east-1 \
      --crawler retail-warehouse`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runWarehousePath, "warehouse", "",
		"warehouse location: a directory or an s3://bucket/prefix URI")
	runCmd.Flags().StringVar(&runRegion, "region", "",
		"AWS region for S3 warehouse locations")
	runCmd.Flags().StringVar(&runCrawler, "crawler", "",
		"AWS Glue crawler to start after a successful publish")
	runCmd.Flags().IntVar(&runExtractTimeout, "extract-timeout", 0,
		"per-entity extraction timeout in seconds")
	runCmd.Flags().IntVar(&runRetryAttempts, "retry-attempts", -1,
		"extraction retries when the source is unavailable")
	runCmd.Flags().IntVar(&runRetryBackoff, "retry-backoff", -1,
		"initial retry backoff in seconds (doubles per attempt)")
	runCmd.Flags().StringVar(&runCompression, "compression", "",
		"parquet compression codec: snappy, zstd, none")
	runCmd.Flags().BoolVar(&runJSONReport, "json", false,
		"print the run report as JSON to stdout")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if runWarehousePath != "" {
		cfg.Warehouse.Path = runWarehousePath
	}
	if runRegion != "" {
		cfg.Warehouse.Region = runRegion
	}
	if runCrawler != "" {
		cfg.Catalog.Crawler = runCrawler
	}
	if runExtractTimeout > 0 {
		cfg.Run.ExtractTimeout = runExtractTimeout
	}
	if runRetryAttempts >= 0 {
		cfg.Run.RetryAttempts = runRetryAttempts
	}
	if runRetryBackoff >= 0 {
		cfg.Run.RetryBackoff = runRetryBackoff
	}
	if runCompression != "" {
		cfg.Run.Compression = runCompression
	}

	// Validate configuration
	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	}()

	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer pool.Close()

	if meta, err := db.GetAllMetadata(ctx, pool); err == nil && len(meta) > 0 {
		logging.Debug().
			Str("seeded_at", meta["seeded_at"]).
			Str("seeder_version", meta["version"]).
			Msg("Source carries seed metadata")
	}

	snk, err := buildSink(ctx, cfg)
	if err != nil {
		return err
	}
	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return err
	}

	source := extract.New(pool, time.Duration(cfg.Run.ExtractTimeout)*time.Second)
	p, err := pipeline.New(source, snk, notifier, pipeline.Options{
		RetryAttempts: cfg.Run.RetryAttempts,
		RetryBackoff:  time.Duration(cfg.Run.RetryBackoff) * time.Second,
		Compression:   cfg.Run.Compression,
	})
	if err != nil {
		return err
	}

	report := p.Run(ctx)
	report.Log()

	if runJSONReport {
		raw, err := report.JSON()
		if err != nil {
			return err
		}
		cmd.Println(string(raw))
	}

	if report.Status != pipeline.StatusSuccess {
		return fmt.Errorf("pipeline run %s failed: %w", report.RunID, report.Err)
	}
	return nil
}

func buildSink(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	if cfg.Warehouse.IsS3() {
		bucket, prefix := cfg.Warehouse.S3Bucket()
		return sink.NewS3(ctx, bucket, prefix, cfg.Warehouse.Region)
	}
	return sink.NewFilesystem(cfg.Warehouse.Path), nil
}

func buildNotifier(ctx context.Context, cfg *config.Config) (catalog.Notifier, error) {
	if cfg.Catalog.Crawler == "" {
		return catalog.Noop{}, nil
	}
	region := cfg.Catalog.Region
	if region == "" {
		region = cfg.Warehouse.Region
	}
	return catalog.NewGlue(ctx, cfg.Catalog.Crawler, region)
}
