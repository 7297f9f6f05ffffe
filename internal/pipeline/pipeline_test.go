package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/edgemart/starlift/internal/extract"
	"github.com/edgemart/starlift/internal/schema"
	"github.com/edgemart/starlift/internal/sink"
)

func strptr(s string) *string { return &s }

func testSnapshot() *schema.Snapshot {
	return &schema.Snapshot{
		Customers: []schema.Customer{
			{CustomerNumber: 1, CustomerName: "Mini Wheels Co.",
				City: "San Francisco", State: strptr("CA"),
				PostalCode: strptr("94016"), Country: "USA",
				CreditLimit: decimal.RequireFromString("64600.00")},
		},
		ProductLines: []schema.ProductLine{
			{ProductLine: "Electronics", TextDescription: strptr("Electronics")},
		},
		Products: []schema.Product{
			{ProductCode: "A", ProductName: "Radio Controlled Car",
				ProductLine: strptr("Electronics"),
				MSRP:        decimal.RequireFromString("12.50")},
		},
		Orders: []schema.Order{
			{OrderNumber: 1, OrderDate: time.Date(2023, 2, 14, 0, 0, 0, 0, time.UTC),
				Status: "Shipped", CustomerNumber: 1},
		},
		OrderDetails: []schema.OrderDetail{
			{OrderNumber: 1, ProductCode: "A", QuantityOrdered: 3,
				PriceEach: decimal.RequireFromString("10.00"), OrderLineNumber: 1},
			// Dangling: order 2 is absent.
			{OrderNumber: 2, ProductCode: "A", QuantityOrdered: 1,
				PriceEach: decimal.RequireFromString("5.00"), OrderLineNumber: 1},
		},
	}
}

// fakeSource returns queued errors first, then snapshots.
type fakeSource struct {
	errs  []error
	snap  *schema.Snapshot
	calls int
}

func (f *fakeSource) Snapshot(context.Context) (*schema.Snapshot, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.snap, nil
}

type fakeNotifier struct {
	refreshed int
	err       error
}

func (f *fakeNotifier) Refresh(context.Context) error {
	f.refreshed++
	return f.err
}

func (f *fakeNotifier) Name() string { return "fake" }

func TestRunSuccess(t *testing.T) {
	base := t.TempDir()
	source := &fakeSource{snap: testSnapshot()}
	notifier := &fakeNotifier{}

	p, err := New(source, sink.NewFilesystem(base), notifier, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := p.Run(context.Background())
	if report.Status != StatusSuccess {
		t.Fatalf("Expected success, got %s: %v", report.Status, report.Err)
	}
	if report.RowsWritten[schema.TableFactOrders] != 1 {
		t.Errorf("Expected 1 fact written, got %d", report.RowsWritten[schema.TableFactOrders])
	}
	if report.RowsSkipped[schema.TableFactOrders] != 1 {
		t.Errorf("Expected 1 fact skipped, got %d", report.RowsSkipped[schema.TableFactOrders])
	}
	if notifier.refreshed != 1 {
		t.Errorf("Expected 1 catalog refresh, got %d", notifier.refreshed)
	}

	facts, err := parquet.ReadFile[schema.FactOrder](
		filepath.Join(base, schema.TableFactOrders, "order_year=2023", "part-00000.parquet"))
	if err != nil {
		t.Fatalf("Reading published facts failed: %v", err)
	}
	if len(facts) != 1 || facts[0].OrderAmount != 3000 {
		t.Errorf("Unexpected published facts: %+v", facts)
	}

	// Lock is released: a second run succeeds too.
	report = p.Run(context.Background())
	if report.Status != StatusSuccess {
		t.Errorf("Expected second run to succeed, got %v", report.Err)
	}
}

func TestRunRetriesSourceUnavailable(t *testing.T) {
	source := &fakeSource{
		errs: []error{
			fmt.Errorf("dial: %w", extract.ErrSourceUnavailable),
			fmt.Errorf("dial: %w", extract.ErrSourceUnavailable),
		},
		snap: testSnapshot(),
	}
	p, err := New(source, sink.NewFilesystem(t.TempDir()), nil, Options{RetryAttempts: 3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := p.Run(context.Background())
	if report.Status != StatusSuccess {
		t.Fatalf("Expected success after retries, got %v", report.Err)
	}
	if source.calls != 3 {
		t.Errorf("Expected 3 extraction attempts, got %d", source.calls)
	}
}

func TestRunRetriesExhausted(t *testing.T) {
	source := &fakeSource{
		errs: []error{
			fmt.Errorf("dial: %w", extract.ErrSourceUnavailable),
			fmt.Errorf("dial: %w", extract.ErrSourceUnavailable),
		},
	}
	p, err := New(source, sink.NewFilesystem(t.TempDir()), nil, Options{RetryAttempts: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := p.Run(context.Background())
	if report.Status != StatusFailure {
		t.Fatal("Expected failure when retries are exhausted")
	}
	if !errors.Is(report.Err, extract.ErrSourceUnavailable) {
		t.Errorf("Expected ErrSourceUnavailable, got %v", report.Err)
	}
	if source.calls != 2 {
		t.Errorf("Expected 2 attempts, got %d", source.calls)
	}
}

func TestRunSchemaMismatchNotRetried(t *testing.T) {
	source := &fakeSource{
		errs: []error{fmt.Errorf("bad shape: %w", schema.ErrMismatch)},
		snap: testSnapshot(),
	}
	notifier := &fakeNotifier{}
	p, err := New(source, sink.NewFilesystem(t.TempDir()), notifier, Options{RetryAttempts: 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := p.Run(context.Background())
	if report.Status != StatusFailure {
		t.Fatal("Expected failure for schema mismatch")
	}
	if source.calls != 1 {
		t.Errorf("Schema mismatch must not be retried; got %d attempts", source.calls)
	}
	if notifier.refreshed != 0 {
		t.Error("Catalog must not be refreshed on failure")
	}
}

func TestRunLockedOutputFails(t *testing.T) {
	base := t.TempDir()
	holder := sink.NewFilesystem(base)
	if err := holder.AcquireRunLock(context.Background(), "other"); err != nil {
		t.Fatalf("Pre-lock failed: %v", err)
	}

	source := &fakeSource{snap: testSnapshot()}
	p, err := New(source, sink.NewFilesystem(base), nil, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := p.Run(context.Background())
	if report.Status != StatusFailure {
		t.Fatal("Expected failure while output is locked")
	}
	if !errors.Is(report.Err, sink.ErrRunLocked) {
		t.Errorf("Expected ErrRunLocked, got %v", report.Err)
	}
	if source.calls != 0 {
		t.Error("Extraction must not start when the lock is held")
	}
}

func TestRunCancelledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := &fakeSource{snap: testSnapshot()}
	notifier := &fakeNotifier{}
	p, err := New(source, sink.NewFilesystem(t.TempDir()), notifier, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := p.Run(ctx)
	if report.Status != StatusFailure {
		t.Fatal("Expected failure for cancelled run")
	}
	if notifier.refreshed != 0 {
		t.Error("Catalog must not be refreshed on aborted run")
	}
}

func TestRunNotifierFailureDoesNotFailRun(t *testing.T) {
	source := &fakeSource{snap: testSnapshot()}
	notifier := &fakeNotifier{err: errors.New("crawler gone")}
	p, err := New(source, sink.NewFilesystem(t.TempDir()), notifier, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	report := p.Run(context.Background())
	if report.Status != StatusSuccess {
		t.Errorf("Notifier failure must not fail the run, got %v", report.Err)
	}
}

func TestRunIdempotence(t *testing.T) {
	base := t.TempDir()
	source := &fakeSource{snap: testSnapshot()}
	p, err := New(source, sink.NewFilesystem(base), nil, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	first := p.Run(context.Background())
	if first.Status != StatusSuccess {
		t.Fatalf("First run failed: %v", first.Err)
	}
	firstRows, err := parquet.ReadFile[schema.FactOrder](
		filepath.Join(base, schema.TableFactOrders, "order_year=2023", "part-00000.parquet"))
	if err != nil {
		t.Fatal(err)
	}

	second := p.Run(context.Background())
	if second.Status != StatusSuccess {
		t.Fatalf("Second run failed: %v", second.Err)
	}
	secondRows, err := parquet.ReadFile[schema.FactOrder](
		filepath.Join(base, schema.TableFactOrders, "order_year=2023", "part-00000.parquet"))
	if err != nil {
		t.Fatal(err)
	}

	if len(firstRows) != len(secondRows) {
		t.Fatalf("Row sets differ: %d vs %d", len(firstRows), len(secondRows))
	}
	for i := range firstRows {
		if firstRows[i] != secondRows[i] {
			t.Errorf("Row %d differs across runs: %+v vs %+v", i, firstRows[i], secondRows[i])
		}
	}
}

func TestReportJSON(t *testing.T) {
	source := &fakeSource{snap: testSnapshot()}
	p, err := New(source, sink.NewFilesystem(t.TempDir()), nil, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	report := p.Run(context.Background())

	raw, err := report.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if len(raw) == 0 {
		t.Error("Expected non-empty JSON report")
	}
}
