package cart

import "fmt"

// Item is one requested line of a checkout: which product, how many, and
// which store should fulfil it. Prices are never trusted from the client;
// they are snapshotted from the catalog at order time.
type Item struct {
	ProductID int `json:"productId"`
	StoreID   int `json:"storeId,omitempty"`
	Quantity  int `json:"quantity"`
}

// InvalidItemError reports a structurally broken cart line. It is returned
// before any arithmetic or persistence happens, so the caller can fix the
// input and retry safely.
type InvalidItemError struct {
	Index  int
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("cart item %d is invalid: %s", e.Index, e.Reason)
}

// Validate checks every line for structural problems. An empty slice is
// accepted here; callers that require a non-empty cart enforce that
// themselves.
func Validate(items []Item) error {
	for i, it := range items {
		if it.ProductID <= 0 {
			return &InvalidItemError{Index: i, Reason: "product id must be positive"}
		}
		if it.Quantity <= 0 {
			return &InvalidItemError{Index: i, Reason: "quantity must be positive"}
		}
	}
	return nil
}
