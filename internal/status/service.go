package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khayson/barffoods-backend/internal/messaging"
	"github.com/khayson/barffoods-backend/internal/notify"
	"github.com/khayson/barffoods-backend/internal/order"
)

// TopicStatusChanged carries ChangedEvent after a transition commits.
const TopicStatusChanged = "orders.status_changed"

// ChangedEvent is the domain event emitted per validated transition.
type ChangedEvent struct {
	OrderID int       `json:"orderId"`
	Code    string    `json:"code"`
	UserID  int       `json:"userId"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

// Store is the slice of the order repository the machine needs.
// *order.PostgresRepository satisfies it.
type Store interface {
	GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id int) (order.Order, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int, status string) error
	AppendHistoryTx(ctx context.Context, tx *sql.Tx, id int, status, note string) error
}

// Service drives orders through the forward fulfillment states. The status
// mutation and the history append commit together; event and notification
// dispatch happen after the commit and never affect the transition's
// outcome.
type Service struct {
	db       *sql.DB
	store    Store
	events   messaging.Publisher
	notifier notify.Dispatcher
	log      *slog.Logger
}

func NewService(db *sql.DB, store Store, events messaging.Publisher, notifier notify.Dispatcher, log *slog.Logger) *Service {
	return &Service{db: db, store: store, events: events, notifier: notifier, log: log}
}

// UpdateStatus validates the transition under a row lock, records it, and
// dispatches side effects once the transaction has committed.
func (s *Service) UpdateStatus(ctx context.Context, orderID int, newStatus, notes, actor string) (order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ord, err := s.store.GetByIDForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if ord.Status == newStatus || !CanTransition(ord.Status, newStatus) {
		return order.Order{}, &TransitionError{Current: ord.Status, Next: newStatus}
	}

	note := notes
	if note == "" {
		note = fmt.Sprintf("Status changed from %s to %s", ord.Status, newStatus)
	}
	if actor != "" {
		note += " (by " + actor + ")"
	}

	if err := s.store.UpdateStatusTx(ctx, tx, ord.ID, newStatus); err != nil {
		return order.Order{}, err
	}
	if err := s.store.AppendHistoryTx(ctx, tx, ord.ID, newStatus, note); err != nil {
		return order.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return order.Order{}, err
	}

	prev := ord.Status
	ord.Status = newStatus
	s.dispatch(ctx, ord, prev)
	return ord, nil
}

// dispatch publishes the domain event and kicks off the customer
// notification. The transition is already complete; failures here are
// logged only.
func (s *Service) dispatch(ctx context.Context, ord order.Order, prev string) {
	ev := ChangedEvent{
		OrderID: ord.ID,
		Code:    ord.Code,
		UserID:  ord.UserID,
		From:    prev,
		To:      ord.Status,
		At:      time.Now().UTC(),
	}
	if err := s.events.PublishEvent(ctx, TopicStatusChanged, ord.Code, ev); err != nil {
		s.log.Warn("status event publish failed", "order_id", ord.ID, "err", err)
	}

	// fire-and-forget: the request does not wait on customer notification
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.notifier.Notify(nctx, "order.status_changed", notify.AudienceCustomer, ev)
	}()
}

// IsTransitionError lets handlers classify validation failures without
// depending on the concrete type.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
