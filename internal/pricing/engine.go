package pricing

import (
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"
)

// Hard fallbacks used when neither the store nor the global configuration
// yields a usable value.
const (
	defaultDeliveryFee = 4.99
	defaultTaxRate     = 7.0
)

// Engine computes authoritative cart totals. It is pure given one Config
// snapshot: no persistence, no network, safe to call many times per request.
type Engine struct {
	cfg Config
	log *slog.Logger
}

func NewEngine(cfg Config, log *slog.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// ComputeTotals validates the lines, sums the snapshot prices, evaluates the
// discount rules in priority order and applies delivery fee and tax.
func (e *Engine) ComputeTotals(lines []Line, opts Options) (Totals, error) {
	for i, ln := range lines {
		if ln.Quantity <= 0 {
			return Totals{}, &InvalidCartError{Line: i, Reason: "quantity must be positive"}
		}
		if ln.UnitPrice < 0 {
			return Totals{}, &InvalidCartError{Line: i, Reason: "unit price must be non-negative"}
		}
	}
	if len(lines) == 0 && !opts.AllowEmpty {
		return Totals{}, &InvalidCartError{Line: -1, Reason: "cart is empty"}
	}

	subtotal := decimal.Zero
	for _, ln := range lines {
		subtotal = subtotal.Add(decimal.NewFromFloat(ln.UnitPrice).Mul(decimal.NewFromInt(int64(ln.Quantity))))
	}
	subtotal = subtotal.Round(2)

	discount, breakdown, applied := e.evaluateDiscounts(subtotal, opts.PriorOrders)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	var t Totals
	t.Subtotal, _ = subtotal.Float64()
	t.Discount, _ = discount.Float64()
	t.Breakdown = breakdown
	t.Applied = applied

	// an empty cart prices to zero but still reports the discounts the user
	// would qualify for
	if len(lines) == 0 {
		return t, nil
	}

	fee := decimal.NewFromFloat(e.resolveDeliveryFee(opts.ShippingOverride)).Round(2)
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(decimal.NewFromFloat(e.resolveTaxRate())).Div(decimal.NewFromInt(100)).Round(2)

	t.DeliveryFee, _ = fee.Float64()
	t.Tax, _ = tax.Float64()
	t.Total, _ = taxable.Add(fee).Add(tax).Round(2).Float64()
	return t, nil
}

// evaluateDiscounts applies the independently-enabled rules additively, in a
// fixed priority order. Unknown or disabled rules are skipped silently.
func (e *Engine) evaluateDiscounts(subtotal decimal.Decimal, priorOrders int) (decimal.Decimal, []RuleResult, []string) {
	discount := decimal.Zero
	breakdown := make([]RuleResult, 0, 2)
	applied := make([]string, 0, 2)

	if r, ok := e.cfg.Rules[RuleFirstTimeCustomer]; ok && r.Enabled {
		res := RuleResult{Rule: RuleFirstTimeCustomer, Description: r.Description}
		if priorOrders == 0 {
			res.Eligible = true
			amt := percentOf(subtotal, r.Percentage)
			res.Amount, _ = amt.Float64()
			discount = discount.Add(amt)
			if amt.IsPositive() {
				applied = append(applied, RuleFirstTimeCustomer)
			}
		}
		breakdown = append(breakdown, res)
	}

	if r, ok := e.cfg.Rules[RuleBulkOrder]; ok && r.Enabled {
		res := RuleResult{Rule: RuleBulkOrder, Description: r.Description}
		threshold := decimal.NewFromFloat(r.Threshold)
		if subtotal.GreaterThanOrEqual(threshold) {
			res.Eligible = true
			amt := percentOf(subtotal, r.Percentage)
			res.Amount, _ = amt.Float64()
			discount = discount.Add(amt)
			if amt.IsPositive() {
				applied = append(applied, RuleBulkOrder)
			}
		} else {
			// not yet eligible: report how much more would unlock it
			res.Remaining, _ = threshold.Sub(subtotal).Round(2).Float64()
		}
		breakdown = append(breakdown, res)
	}

	return discount.Round(2), breakdown, applied
}

// resolveDeliveryFee walks the fallback chain: collaborator override, then
// the per-store fee, then the global fee, then the hard constant. Invalid
// configured values are logged and skipped, never fatal.
func (e *Engine) resolveDeliveryFee(override *float64) float64 {
	if override != nil && *override >= 0 {
		return *override
	}
	if e.cfg.StoreDeliveryFee != "" {
		if f, err := strconv.ParseFloat(e.cfg.StoreDeliveryFee, 64); err == nil && f >= 0 {
			return f
		}
		e.log.Warn("invalid store delivery fee, falling back", "value", e.cfg.StoreDeliveryFee)
	}
	if e.cfg.GlobalDeliveryFee != "" {
		if f, err := strconv.ParseFloat(e.cfg.GlobalDeliveryFee, 64); err == nil && f >= 0 {
			return f
		}
		e.log.Warn("invalid global delivery fee, falling back", "value", e.cfg.GlobalDeliveryFee)
	}
	return defaultDeliveryFee
}

func (e *Engine) resolveTaxRate() float64 {
	if e.cfg.TaxRate == "" {
		return defaultTaxRate
	}
	f, err := strconv.ParseFloat(e.cfg.TaxRate, 64)
	if err != nil || f < 0 || f > 100 {
		e.log.Warn("invalid tax rate, using default", "value", e.cfg.TaxRate)
		return defaultTaxRate
	}
	return f
}

func percentOf(amount decimal.Decimal, pct float64) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Round(2)
}
