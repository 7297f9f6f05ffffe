package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func strptr(s string) *string { return &s }

func TestCheckColumns(t *testing.T) {
	desc := Descriptors[EntityOrders]

	if err := CheckColumns(EntityOrders, desc.Columns); err != nil {
		t.Errorf("Expected matching columns to pass, got %v", err)
	}

	// Wrong order
	swapped := []string{"order_date", "order_number", "status", "customer_number"}
	err := CheckColumns(EntityOrders, swapped)
	if err == nil {
		t.Fatal("Expected error for reordered columns")
	}
	if !errors.Is(err, ErrMismatch) {
		t.Errorf("Expected ErrMismatch, got %v", err)
	}
	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatal("Expected a MismatchError")
	}
	if mm.Entity != EntityOrders {
		t.Errorf("Expected entity %s, got %s", EntityOrders, mm.Entity)
	}

	// Missing column
	if err := CheckColumns(EntityOrders, desc.Columns[:3]); err == nil {
		t.Error("Expected error for missing column")
	}

	// Unknown entity
	if err := CheckColumns("warehouses", desc.Columns); !errors.Is(err, ErrMismatch) {
		t.Errorf("Expected ErrMismatch for unknown entity, got %v", err)
	}
}

func TestValidateCustomers(t *testing.T) {
	rows := []Customer{
		{CustomerNumber: 103, CustomerName: "Atelier graphique", PostalCode: strptr("44000")},
		{CustomerNumber: 112, CustomerName: "Signal Gift Stores"}, // no postal code
		{CustomerNumber: 103, CustomerName: "Atelier graphique", PostalCode: strptr("44000")},
	}

	got := ValidateCustomers(rows)
	if len(got) != 2 {
		t.Fatalf("Expected 2 violations, got %d: %v", len(got), got)
	}
	if got[0].Reason != "missing postal code" || got[0].Key != "112" {
		t.Errorf("Unexpected first violation: %v", got[0])
	}
	if got[1].Reason != "duplicate customer number" || got[1].Key != "103" {
		t.Errorf("Unexpected second violation: %v", got[1])
	}
}

func TestValidateOrderDetails(t *testing.T) {
	rows := []OrderDetail{
		{OrderNumber: 10100, ProductCode: "S18_1749", QuantityOrdered: 30,
			PriceEach: decimal.RequireFromString("136.00"), OrderLineNumber: 1},
		{OrderNumber: 10100, ProductCode: "S18_2248", QuantityOrdered: 0,
			PriceEach: decimal.RequireFromString("55.09"), OrderLineNumber: 2},
		{OrderNumber: 10100, ProductCode: "S18_1749", QuantityOrdered: 1,
			PriceEach: decimal.RequireFromString("-1.00"), OrderLineNumber: 3},
	}

	got := ValidateOrderDetails(rows)
	if len(got) != 3 {
		t.Fatalf("Expected 3 violations, got %d: %v", len(got), got)
	}
	reasons := map[string]bool{}
	for _, v := range got {
		reasons[v.Reason] = true
	}
	for _, want := range []string{"non-positive quantity", "duplicate order line", "negative unit price"} {
		if !reasons[want] {
			t.Errorf("Missing expected violation %q in %v", want, got)
		}
	}
}

func TestValidateSnapshotClean(t *testing.T) {
	snap := &Snapshot{
		Customers: []Customer{
			{CustomerNumber: 103, CustomerName: "Atelier graphique",
				City: "Nantes", Country: "France", PostalCode: strptr("44000")},
		},
		ProductLines: []ProductLine{{ProductLine: "Classic Cars"}},
		Products: []Product{
			{ProductCode: "S10_1678", ProductName: "1969 Harley Davidson",
				ProductLine: strptr("Classic Cars"),
				MSRP:        decimal.RequireFromString("95.70")},
		},
		Orders: []Order{
			{OrderNumber: 10100, OrderDate: time.Date(2023, 1, 6, 0, 0, 0, 0, time.UTC),
				Status: "Shipped", CustomerNumber: 103},
		},
		OrderDetails: []OrderDetail{
			{OrderNumber: 10100, ProductCode: "S10_1678", QuantityOrdered: 30,
				PriceEach: decimal.RequireFromString("136.00"), OrderLineNumber: 1},
		},
	}

	if got := Validate(snap); len(got) != 0 {
		t.Errorf("Expected no violations, got %v", got)
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	cases := []string{"0", "0.01", "136.00", "4080.00", "-12.34", "99999999.99"}
	for _, c := range cases {
		d := decimal.RequireFromString(c)
		back := MoneyDecimal(Money(d))
		if !back.Equal(d) {
			t.Errorf("Money round trip for %s: got %s", c, back)
		}
	}
}
