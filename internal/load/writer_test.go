package load

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/edgemart/starlift/internal/schema"
	"github.com/edgemart/starlift/internal/sink"
)

func sampleStar() *schema.Star {
	return &schema.Star{
		DimCustomers: []schema.DimCustomer{
			{CustomerKey: 1, CustomerName: "Mini Wheels Co.", City: "San Francisco",
				State: "CA", PostalCode: "94016", Country: "USA", CreditLimit: 6460000},
		},
		DimProducts: []schema.DimProduct{
			{ProductKey: "A", ProductName: "Radio Controlled Car",
				ProductLine: "Electronics", LineDescription: "Electronics", MSRP: 1250},
		},
		DimLocations: []schema.DimLocation{
			{PostalCode: "94016", City: "San Francisco", State: "CA", Country: "USA"},
		},
		FactOrders: []schema.FactOrder{
			{OrderNumber: 1, LineNumber: 1,
				OrderDate:   time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC),
				CustomerKey: 1, ProductKey: "A", PostalCode: "94016",
				Quantity: 3, UnitPrice: 1000, OrderAmount: 3000},
			{OrderNumber: 2, LineNumber: 1,
				OrderDate:   time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
				CustomerKey: 1, ProductKey: "A", PostalCode: "94016",
				Quantity: 1, UnitPrice: 1000, OrderAmount: 1000},
		},
	}
}

func TestWriterStageAndPublish(t *testing.T) {
	base := t.TempDir()
	w, err := NewWriter(sink.NewFilesystem(base), "snappy")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	ctx := context.Background()
	star := sampleStar()

	if err := w.Stage(ctx, "run1", star); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	locations, err := w.Publish(ctx, "run1")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	customers, err := parquet.ReadFile[schema.DimCustomer](
		filepath.Join(locations[schema.TableDimCustomers], "part-00000.parquet"))
	if err != nil {
		t.Fatalf("Reading dim_customers failed: %v", err)
	}
	if len(customers) != 1 || customers[0].CustomerKey != 1 {
		t.Errorf("Unexpected customers: %+v", customers)
	}
	if customers[0].CreditLimit != 6460000 {
		t.Errorf("Expected credit limit 6460000, got %d", customers[0].CreditLimit)
	}

	// Facts are partitioned by order year.
	for year, wantOrder := range map[string]int64{"2023": 1, "2024": 2} {
		path := filepath.Join(locations[schema.TableFactOrders],
			"order_year="+year, "part-00000.parquet")
		facts, err := parquet.ReadFile[schema.FactOrder](path)
		if err != nil {
			t.Fatalf("Reading fact partition %s failed: %v", year, err)
		}
		if len(facts) != 1 || facts[0].OrderNumber != wantOrder {
			t.Errorf("Unexpected facts for %s: %+v", year, facts)
		}
	}

	// Measures survive the round trip exactly.
	facts, err := parquet.ReadFile[schema.FactOrder](
		filepath.Join(locations[schema.TableFactOrders], "order_year=2023", "part-00000.parquet"))
	if err != nil {
		t.Fatalf("Reading facts failed: %v", err)
	}
	if got := schema.MoneyDecimal(facts[0].OrderAmount); got.String() != "30" {
		t.Errorf("Expected order amount 30, got %s", got)
	}
	if !facts[0].OrderDate.Equal(star.FactOrders[0].OrderDate) {
		t.Errorf("Order date changed in round trip: %v", facts[0].OrderDate)
	}
}

func TestWriterEmptyFactTable(t *testing.T) {
	base := t.TempDir()
	w, err := NewWriter(sink.NewFilesystem(base), "none")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	ctx := context.Background()

	star := sampleStar()
	star.FactOrders = nil

	if err := w.Stage(ctx, "run1", star); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	locations, err := w.Publish(ctx, "run1")
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	facts, err := parquet.ReadFile[schema.FactOrder](
		filepath.Join(locations[schema.TableFactOrders], "part-00000.parquet"))
	if err != nil {
		t.Fatalf("Reading empty fact table failed: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("Expected empty fact table, got %d rows", len(facts))
	}
}

func TestWriterDiscard(t *testing.T) {
	base := t.TempDir()
	w, err := NewWriter(sink.NewFilesystem(base), "snappy")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	ctx := context.Background()

	if err := w.Stage(ctx, "run1", sampleStar()); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if err := w.Discard(ctx, "run1"); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, schema.TableDimCustomers)); !os.IsNotExist(err) {
		t.Error("Expected nothing visible after discard")
	}
}

func TestNewWriterRejectsUnknownCompression(t *testing.T) {
	if _, err := NewWriter(sink.NewFilesystem(t.TempDir()), "gzip9"); err == nil {
		t.Error("Expected error for unknown compression")
	}
}
