package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestComputeTotals_FirstTimeCustomer(t *testing.T) {
	cfg := Config{
		GlobalDeliveryFee: "5.00",
		TaxRate:           "7",
		Rules: map[string]Rule{
			RuleFirstTimeCustomer: {Enabled: true, Percentage: 10},
		},
	}
	e := NewEngine(cfg, testLogger())

	totals, err := e.ComputeTotals([]Line{
		{ProductID: 1, UnitPrice: 25.00, Quantity: 4},
	}, Options{UserID: 7, PriorOrders: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !almostEqual(totals.Subtotal, 100.00) {
		t.Errorf("subtotal = %v, want 100.00", totals.Subtotal)
	}
	if !almostEqual(totals.Discount, 10.00) {
		t.Errorf("discount = %v, want 10.00", totals.Discount)
	}
	// tax applies to the discounted base, not the raw subtotal
	if !almostEqual(totals.Tax, 6.30) {
		t.Errorf("tax = %v, want 6.30", totals.Tax)
	}
	if !almostEqual(totals.DeliveryFee, 5.00) {
		t.Errorf("deliveryFee = %v, want 5.00", totals.DeliveryFee)
	}
	if !almostEqual(totals.Total, 101.30) {
		t.Errorf("total = %v, want 101.30", totals.Total)
	}
	if len(totals.Applied) != 1 || totals.Applied[0] != RuleFirstTimeCustomer {
		t.Errorf("applied = %v, want [first_time_customer]", totals.Applied)
	}
}

func TestComputeTotals_FirstTimeNotEligibleWithPriorOrders(t *testing.T) {
	cfg := Config{
		TaxRate: "0",
		Rules: map[string]Rule{
			RuleFirstTimeCustomer: {Enabled: true, Percentage: 10},
		},
	}
	e := NewEngine(cfg, testLogger())

	totals, err := e.ComputeTotals([]Line{
		{ProductID: 1, UnitPrice: 50, Quantity: 1},
	}, Options{UserID: 7, PriorOrders: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Discount != 0 {
		t.Errorf("discount = %v, want 0", totals.Discount)
	}
	if len(totals.Breakdown) != 1 || totals.Breakdown[0].Eligible {
		t.Errorf("breakdown should report the rule as ineligible: %+v", totals.Breakdown)
	}
	if len(totals.Applied) != 0 {
		t.Errorf("applied = %v, want empty", totals.Applied)
	}
}

func TestComputeTotals_RulesStack(t *testing.T) {
	cfg := Config{
		TaxRate: "7",
		Rules: map[string]Rule{
			RuleFirstTimeCustomer: {Enabled: true, Percentage: 10},
			RuleBulkOrder:         {Enabled: true, Percentage: 5, Threshold: 100},
		},
	}
	e := NewEngine(cfg, testLogger())

	totals, err := e.ComputeTotals([]Line{
		{ProductID: 1, UnitPrice: 75, Quantity: 2},
	}, Options{PriorOrders: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10% of 150 plus 5% of 150, both computed off the full subtotal
	if !almostEqual(totals.Discount, 22.50) {
		t.Errorf("discount = %v, want 22.50", totals.Discount)
	}
	if !almostEqual(totals.Tax, 8.93) {
		t.Errorf("tax = %v, want 8.93", totals.Tax)
	}
	if !almostEqual(totals.DeliveryFee, 4.99) {
		t.Errorf("deliveryFee = %v, want 4.99 fallback", totals.DeliveryFee)
	}
	if !almostEqual(totals.Total, 141.42) {
		t.Errorf("total = %v, want 141.42", totals.Total)
	}
	if len(totals.Applied) != 2 {
		t.Errorf("applied = %v, want both rules", totals.Applied)
	}
}

func TestComputeTotals_BulkNudge(t *testing.T) {
	cfg := Config{
		TaxRate: "0",
		Rules: map[string]Rule{
			RuleBulkOrder: {Enabled: true, Percentage: 5, Threshold: 100},
		},
	}
	e := NewEngine(cfg, testLogger())

	totals, err := e.ComputeTotals([]Line{
		{ProductID: 1, UnitPrice: 40, Quantity: 2},
	}, Options{PriorOrders: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Discount != 0 {
		t.Errorf("discount = %v, want 0", totals.Discount)
	}
	if len(totals.Breakdown) != 1 {
		t.Fatalf("breakdown = %+v, want one entry", totals.Breakdown)
	}
	if !almostEqual(totals.Breakdown[0].Remaining, 20.00) {
		t.Errorf("remaining = %v, want 20.00", totals.Breakdown[0].Remaining)
	}
}

func TestComputeTotals_DiscountClampedToSubtotal(t *testing.T) {
	cfg := Config{
		TaxRate: "7",
		Rules: map[string]Rule{
			RuleFirstTimeCustomer: {Enabled: true, Percentage: 60},
			RuleBulkOrder:         {Enabled: true, Percentage: 50, Threshold: 50},
		},
	}
	e := NewEngine(cfg, testLogger())

	totals, err := e.ComputeTotals([]Line{
		{ProductID: 1, UnitPrice: 100, Quantity: 1},
	}, Options{PriorOrders: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(totals.Discount, 100.00) {
		t.Errorf("discount = %v, want clamped to 100.00", totals.Discount)
	}
	if totals.Tax != 0 {
		t.Errorf("tax = %v, want 0 on a zero base", totals.Tax)
	}
	if !almostEqual(totals.Total, totals.DeliveryFee) {
		t.Errorf("total = %v, want the delivery fee only", totals.Total)
	}
}

func TestComputeTotals_ShippingOverrideWins(t *testing.T) {
	cfg := Config{GlobalDeliveryFee: "5.00", StoreDeliveryFee: "3.50", TaxRate: "0"}
	e := NewEngine(cfg, testLogger())

	zero := 0.0
	totals, err := e.ComputeTotals([]Line{
		{ProductID: 1, UnitPrice: 10, Quantity: 1},
	}, Options{ShippingOverride: &zero})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.DeliveryFee != 0 {
		t.Errorf("deliveryFee = %v, want override 0", totals.DeliveryFee)
	}
}

func TestComputeTotals_FeeFallbackChain(t *testing.T) {
	cases := []struct {
		name   string
		store  string
		global string
		want   float64
	}{
		{"store wins", "3.50", "5.00", 3.50},
		{"invalid store falls to global", "oops", "5.00", 5.00},
		{"negative store falls to global", "-2", "5.00", 5.00},
		{"invalid global falls to default", "", "free", 4.99},
		{"nothing configured", "", "", 4.99},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(Config{GlobalDeliveryFee: tc.global, StoreDeliveryFee: tc.store, TaxRate: "0"}, testLogger())
			totals, err := e.ComputeTotals([]Line{{ProductID: 1, UnitPrice: 10, Quantity: 1}}, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(totals.DeliveryFee, tc.want) {
				t.Errorf("deliveryFee = %v, want %v", totals.DeliveryFee, tc.want)
			}
		})
	}
}

func TestComputeTotals_InvalidTaxRateUsesDefault(t *testing.T) {
	for _, raw := range []string{"abc", "-1", "150"} {
		e := NewEngine(Config{TaxRate: raw, GlobalDeliveryFee: "0"}, testLogger())
		totals, err := e.ComputeTotals([]Line{{ProductID: 1, UnitPrice: 100, Quantity: 1}}, Options{})
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", raw, err)
		}
		if !almostEqual(totals.Tax, 7.00) {
			t.Errorf("tax for raw %q = %v, want default 7.00", raw, totals.Tax)
		}
	}
}

func TestComputeTotals_EmptyCart(t *testing.T) {
	cfg := Config{
		Rules: map[string]Rule{
			RuleFirstTimeCustomer: {Enabled: true, Percentage: 10},
		},
	}
	e := NewEngine(cfg, testLogger())

	if _, err := e.ComputeTotals(nil, Options{}); err == nil {
		t.Fatal("expected error for empty cart without AllowEmpty")
	}

	totals, err := e.ComputeTotals(nil, Options{AllowEmpty: true, PriorOrders: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Total != 0 || totals.Subtotal != 0 || totals.DeliveryFee != 0 {
		t.Errorf("empty cart should price to zero, got %+v", totals)
	}
	// the breakdown still shows which rules the user would qualify for
	if len(totals.Breakdown) != 1 || !totals.Breakdown[0].Eligible {
		t.Errorf("breakdown = %+v, want eligible first-time entry", totals.Breakdown)
	}
}

func TestComputeTotals_InvalidLines(t *testing.T) {
	e := NewEngine(Config{}, testLogger())

	_, err := e.ComputeTotals([]Line{{ProductID: 1, UnitPrice: 10, Quantity: 0}}, Options{})
	var cartErr *InvalidCartError
	if !errors.As(err, &cartErr) || cartErr.Line != 0 {
		t.Fatalf("expected InvalidCartError on line 0, got %v", err)
	}

	_, err = e.ComputeTotals([]Line{
		{ProductID: 1, UnitPrice: 10, Quantity: 1},
		{ProductID: 2, UnitPrice: -5, Quantity: 1},
	}, Options{})
	if !errors.As(err, &cartErr) || cartErr.Line != 1 {
		t.Fatalf("expected InvalidCartError on line 1, got %v", err)
	}
}

func TestSnapshot_ParsesRules(t *testing.T) {
	src := stubSource{
		"global_delivery_fee":  "5.00",
		"global_tax_rate":      "7",
		"store_delivery_fee:4": "2.50",
		"discount_rules":       `{"first_time_customer":{"enabled":true,"percentage":10}}`,
	}
	cfg := Snapshot(context.Background(), src, 4)

	if cfg.StoreDeliveryFee != "2.50" {
		t.Errorf("storeDeliveryFee = %q, want 2.50", cfg.StoreDeliveryFee)
	}
	r, ok := cfg.Rules[RuleFirstTimeCustomer]
	if !ok || !r.Enabled || r.Percentage != 10 {
		t.Errorf("rules = %+v, want enabled first-time at 10%%", cfg.Rules)
	}
}

func TestSnapshot_BadRulesJSONMeansNoDiscounts(t *testing.T) {
	src := stubSource{"discount_rules": "{not json"}
	cfg := Snapshot(context.Background(), src, 0)
	if cfg.Rules != nil {
		t.Errorf("rules = %+v, want nil for unparseable config", cfg.Rules)
	}
}

type stubSource map[string]string

func (s stubSource) Get(_ context.Context, key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}
