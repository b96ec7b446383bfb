package payment

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Result reports a completed refund.
type Result struct {
	RefundRef string
	Amount    float64
}

// Gateway is the payment collaborator. Capture is treated as already
// completed by checkout time; the fulfillment core only ever asks for
// compensating refunds.
type Gateway interface {
	Refund(ctx context.Context, captureRef string, amount float64) (Result, error)
}

// LogGateway acknowledges every refund and records it in the logs. Used in
// development when no real gateway is configured.
type LogGateway struct {
	Log *slog.Logger
}

func (g *LogGateway) Refund(ctx context.Context, captureRef string, amount float64) (Result, error) {
	ref := "rf_" + uuid.NewString()[:8]
	g.Log.Info("refund issued (log gateway)", "capture_ref", captureRef, "amount", amount, "refund_ref", ref)
	return Result{RefundRef: ref, Amount: amount}, nil
}
