package settings

import "errors"

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("setting not found")

// Well-known keys consumed by the pricing engine. Per-store delivery fees
// are stored under StoreDeliveryFeePrefix + the store id.
const (
	KeyGlobalDeliveryFee   = "global_delivery_fee"
	KeyGlobalTaxRate       = "global_tax_rate"
	KeyDiscountRules       = "discount_rules"
	StoreDeliveryFeePrefix = "store_delivery_fee:"
)

// Repository defines persistence operations for settings.
type Repository interface {
	Get(key string) (string, error)
	Set(key, value string) error
}
