package status

import (
	"fmt"
	"strings"

	"github.com/khayson/barffoods-backend/internal/order"
)

// transitions is the forward-only fulfillment automaton. Skip-ahead moves
// (confirmed straight to delivered) are legal; moving backwards or
// repeating the current state is not. Cancellation and refund are
// administrative overrides handled by the lifecycle service, deliberately
// outside this table.
var transitions = map[string][]string{
	order.StatusConfirmed:  {order.StatusProcessing, order.StatusShipped, order.StatusDelivered},
	order.StatusProcessing: {order.StatusShipped, order.StatusDelivered},
	order.StatusShipped:    {order.StatusDelivered},
	order.StatusDelivered:  {},
}

// AllowedNext returns the states reachable from the given one. Unknown
// states have no successors.
func AllowedNext(current string) []string {
	next := transitions[current]
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether current -> next is in the table, so UIs can
// render only legal actions without re-deriving it.
func CanTransition(current, next string) bool {
	for _, s := range transitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionError names the permitted set so callers see exactly what was
// possible from the current state.
type TransitionError struct {
	Current string
	Next    string
}

func (e *TransitionError) Error() string {
	allowed := transitions[e.Current]
	if e.Current == e.Next {
		return fmt.Sprintf("order is already %q", e.Current)
	}
	if len(allowed) == 0 {
		return fmt.Sprintf("no transitions allowed from %q", e.Current)
	}
	return fmt.Sprintf("cannot transition from %q to %q; allowed: %s",
		e.Current, e.Next, strings.Join(allowed, ", "))
}
