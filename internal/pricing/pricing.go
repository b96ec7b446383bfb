package pricing

import "fmt"

// Discount rule names, evaluated in this fixed order so that the breakdown
// is deterministic.
const (
	RuleFirstTimeCustomer = "first_time_customer"
	RuleBulkOrder         = "bulk_order"
)

// Rule is one externally administered discount rule.
type Rule struct {
	Enabled     bool    `json:"enabled"`
	Percentage  float64 `json:"percentage"`
	Threshold   float64 `json:"threshold"`
	Description string  `json:"description"`
}

// Line is one priced cart line. UnitPrice is the catalog snapshot price,
// never a client-supplied figure.
type Line struct {
	ProductID int     `json:"productId"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// Options carry the per-request context a pricing run needs. PriorOrders is
// the number of non-cancelled orders the user already has; the engine never
// reads storage itself.
type Options struct {
	UserID           int
	StoreID          int
	PriorOrders      int
	AllowEmpty       bool
	ShippingOverride *float64 // collaborator-supplied shipping cost, wins over the fee chain
}

// RuleResult describes how one rule evaluated. Ineligible bulk orders still
// report the remaining spend needed to unlock the discount.
type RuleResult struct {
	Rule        string  `json:"rule"`
	Description string  `json:"description,omitempty"`
	Eligible    bool    `json:"eligible"`
	Amount      float64 `json:"amount"`
	Remaining   float64 `json:"remaining,omitempty"`
}

// Totals is the authoritative price of a cart.
type Totals struct {
	Subtotal    float64      `json:"subtotal"`
	Discount    float64      `json:"discount"`
	DeliveryFee float64      `json:"deliveryFee"`
	Tax         float64      `json:"tax"`
	Total       float64      `json:"total"`
	Breakdown   []RuleResult `json:"breakdown"`
	Applied     []string     `json:"appliedDiscounts"`
}

// InvalidCartError reports structurally broken pricing input. No arithmetic
// has happened when it is returned.
type InvalidCartError struct {
	Line   int
	Reason string
}

func (e *InvalidCartError) Error() string {
	if e.Line < 0 {
		return "invalid cart: " + e.Reason
	}
	return fmt.Sprintf("invalid cart line %d: %s", e.Line, e.Reason)
}
