package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgemart/starlift/internal/db"
	"github.com/edgemart/starlift/internal/logging"
	"github.com/edgemart/starlift/internal/seed"
)

var (
	seedCustomers     int
	seedProducts      int
	seedOrders        int
	seedMaxOrderLines int
	seedDangling      int
	seedRandomSeed    uint64
	seedDropExisting  bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a PostgreSQL database with a normalized retail source schema",
	Long: `Seed creates the normalized OLTP source schema (customers, product
lines, products, orders, order details) and populates it with generated
retail data. The --dangling flag injects order lines whose order number
does not resolve, to exercise the pipeline's exclusion accounting.

Example:
  starlift seed --connection "postgres://..." --customers 500 --orders 5000
  starlift seed --connection "postgres://..." --dangling 10 --random-seed 42`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCustomers, "customers", 0,
		"number of customers to generate")
	seedCmd.Flags().IntVar(&seedProducts, "products", 0,
		"number of products to generate")
	seedCmd.Flags().IntVar(&seedOrders, "orders", -1,
		"number of orders to generate")
	seedCmd.Flags().IntVar(&seedMaxOrderLines, "max-order-lines", 0,
		"maximum number of lines per order")
	seedCmd.Flags().IntVar(&seedDangling, "dangling", -1,
		"number of order lines referencing orders that do not exist")
	seedCmd.Flags().Uint64Var(&seedRandomSeed, "random-seed", 0,
		"seed for reproducible data generation (0 = random)")
	seedCmd.Flags().BoolVar(&seedDropExisting, "drop-existing", false,
		"drop existing source tables before seeding")
}

func runSeed(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if seedCustomers > 0 {
		cfg.Seed.Customers = seedCustomers
	}
	if seedProducts > 0 {
		cfg.Seed.Products = seedProducts
	}
	if seedOrders >= 0 {
		cfg.Seed.Orders = seedOrders
	}
	if seedMaxOrderLines > 0 {
		cfg.Seed.MaxOrderLines = seedMaxOrderLines
	}
	if seedDangling >= 0 {
		cfg.Seed.Dangling = seedDangling
	}
	if seedRandomSeed != 0 {
		cfg.Seed.RandomSeed = seedRandomSeed
	}
	if seedDropExisting {
		cfg.Seed.DropExisting = true
	}

	// Validate configuration
	if err := cfg.ValidateSeed(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if cfg.Seed.DropExisting {
		if err := db.DropMetadata(ctx, pool); err != nil {
			logging.Debug().Err(err).Msg("No metadata table to drop")
		}
	}

	if err := seed.NewSeeder(cfg.Seed).Seed(ctx, pool); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}

	logging.Info().Msg("Source database seeding complete")
	return nil
}
