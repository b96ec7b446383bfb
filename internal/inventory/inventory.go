package inventory

import (
	"errors"
	"fmt"
)

// Product is the stock-relevant projection of a catalog product. Stock is
// mutated exclusively through the Ledger; nothing else writes
// stock_quantity.
type Product struct {
	ID            int     `json:"productId"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	Active        bool    `json:"active"`
}

// ErrNotFound is returned when a product id does not exist.
var ErrNotFound = errors.New("product not found")

// InvalidQuantityError rejects non-positive quantities before any lock is
// taken.
type InvalidQuantityError struct {
	Qty int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive integer, got %d", e.Qty)
}

// InsufficientStockError reports a refused decrement with enough detail for
// the caller to react programmatically.
type InsufficientStockError struct {
	ProductID int
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Shortage is one under-stocked line from a bulk pre-flight check.
type Shortage struct {
	ProductID int `json:"productId"`
	Requested int `json:"requested"`
	Available int `json:"available"`
}
