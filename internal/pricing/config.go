package pricing

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/khayson/barffoods-backend/internal/settings"
)

// ConfigSource is the read-only key/value access the engine's snapshot is
// built from. *settings.Service satisfies it.
type ConfigSource interface {
	Get(ctx context.Context, key, def string) string
}

// Config is an explicit configuration snapshot. Fee and tax values are kept
// raw; parsing happens fail-soft inside the engine so a bad value degrades
// to the next fallback instead of blocking pricing.
type Config struct {
	GlobalDeliveryFee string
	StoreDeliveryFee  string // raw per-store fee for the store in play, "" when unset
	TaxRate           string
	Rules             map[string]Rule
}

// Snapshot reads the pricing configuration once so a pricing run is
// deterministic and testable without a live configuration store.
func Snapshot(ctx context.Context, src ConfigSource, storeID int) Config {
	cfg := Config{
		GlobalDeliveryFee: src.Get(ctx, settings.KeyGlobalDeliveryFee, ""),
		TaxRate:           src.Get(ctx, settings.KeyGlobalTaxRate, ""),
	}
	if storeID > 0 {
		cfg.StoreDeliveryFee = src.Get(ctx, settings.StoreDeliveryFeePrefix+strconv.Itoa(storeID), "")
	}
	if raw := src.Get(ctx, settings.KeyDiscountRules, ""); raw != "" {
		var rules map[string]Rule
		if err := json.Unmarshal([]byte(raw), &rules); err == nil {
			cfg.Rules = rules
		}
		// unparseable rule sets mean no discounts, never an error
	}
	return cfg
}
