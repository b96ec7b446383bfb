package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/khayson/barffoods-backend/internal/cart"
	"github.com/khayson/barffoods-backend/internal/idempotency"
	"github.com/khayson/barffoods-backend/internal/inventory"
	"github.com/khayson/barffoods-backend/internal/messaging"
	"github.com/khayson/barffoods-backend/internal/notify"
	"github.com/khayson/barffoods-backend/internal/payment"
	"github.com/khayson/barffoods-backend/internal/pricing"
)

// Event topics published after lifecycle mutations commit.
const (
	TopicOrderCreated   = "orders.created"
	TopicOrderCancelled = "orders.cancelled"
)

// CreatedEvent is emitted once per durable order.
type CreatedEvent struct {
	OrderID int     `json:"orderId"`
	Code    string  `json:"code"`
	UserID  int     `json:"userId"`
	Total   float64 `json:"total"`
	Status  string  `json:"status"`
}

// CancelledEvent is emitted after stock has been restored and any refund
// issued.
type CancelledEvent struct {
	OrderID  int    `json:"orderId"`
	Code     string `json:"code"`
	UserID   int    `json:"userId"`
	Reason   string `json:"reason,omitempty"`
	Refunded bool   `json:"refunded"`
}

// CheckoutInput is everything one checkout needs. ShippingCost is the
// opaque figure from the shipping collaborator; when nil the pricing
// engine's delivery fee chain applies.
type CheckoutInput struct {
	UserID            int
	AddressID         int
	SlotID            *int
	StoreID           int
	Items             []cart.Item
	PaymentMethod     string
	PaymentCaptureRef string
	ShippingCost      *float64
	Notes             string
	IdempotencyKey    string
}

// ServiceDeps wires the lifecycle manager's collaborators.
type ServiceDeps struct {
	DB          *sql.DB
	Repo        Repository
	Ledger      *inventory.Ledger
	Pricing     pricing.ConfigSource
	Idempotency idempotency.Store // optional
	Payments    payment.Gateway
	Notifier    notify.Dispatcher
	Events      messaging.Publisher
	Log         *slog.Logger
}

// Service creates, cancels and refunds orders. All multi-step mutations run
// inside one database transaction; consistency comes from transaction
// boundaries, never from application-level locks.
type Service struct {
	db       *sql.DB
	repo     Repository
	ledger   *inventory.Ledger
	pricing  pricing.ConfigSource
	idem     idempotency.Store
	payments payment.Gateway
	notifier notify.Dispatcher
	events   messaging.Publisher
	log      *slog.Logger
}

func NewService(d ServiceDeps) *Service {
	return &Service{
		db:       d.DB,
		repo:     d.Repo,
		ledger:   d.Ledger,
		pricing:  d.Pricing,
		idem:     d.Idempotency,
		payments: d.Payments,
		notifier: d.Notifier,
		events:   d.Events,
		log:      d.Log,
	}
}

// CreateOrder turns a cart into a durable order. Re-submission with the
// same idempotency key returns the original order unchanged: no pricing
// rerun, no inventory mutation, no duplicate notification.
func (s *Service) CreateOrder(ctx context.Context, in CheckoutInput) (Order, error) {
	if len(in.Items) == 0 {
		return Order{}, ErrEmptyCart
	}
	if err := cart.Validate(in.Items); err != nil {
		return Order{}, err
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	} else if existing, ok := s.replay(ctx, in.UserID, key); ok {
		return existing, nil
	}

	lines, items, err := s.resolveLines(ctx, in, true)
	if err != nil {
		return Order{}, err
	}

	prior, err := s.repo.CountActiveByUser(ctx, in.UserID)
	if err != nil {
		return Order{}, &CreationError{Cause: err}
	}

	engine := pricing.NewEngine(pricing.Snapshot(ctx, s.pricing, in.StoreID), s.log)
	totals, err := engine.ComputeTotals(lines, pricing.Options{
		UserID:           in.UserID,
		StoreID:          in.StoreID,
		PriorOrders:      prior,
		ShippingOverride: in.ShippingCost,
	})
	if err != nil {
		return Order{}, err
	}

	status := StatusPendingPayment
	if in.PaymentCaptureRef != "" {
		status = StatusConfirmed
	}
	ord := Order{
		UserID:            in.UserID,
		AddressID:         in.AddressID,
		SlotID:            in.SlotID,
		Subtotal:          totals.Subtotal,
		Discount:          totals.Discount,
		Tax:               totals.Tax,
		ShippingCost:      totals.DeliveryFee,
		Total:             totals.Total,
		Status:            status,
		PaymentMethod:     in.PaymentMethod,
		PaymentCaptureRef: in.PaymentCaptureRef,
		Notes:             in.Notes,
		IdempotencyKey:    key,
		Items:             items,
	}

	created, err := s.createInTx(ctx, ord, in.Items)
	if err != nil {
		// another request won the race on this key: read their order back,
		// but only hand it out to the user who owns it
		if isUniqueViolation(err, "orders_idempotency_key_key") {
			if existing, err2 := s.repo.GetByIdempotencyKey(ctx, key); err2 == nil && existing.UserID == in.UserID {
				return existing, nil
			}
		}
		var stockErr *inventory.InsufficientStockError
		if errors.As(err, &stockErr) {
			return Order{}, err
		}
		if isStructural(err) {
			return Order{}, err
		}
		return Order{}, &CreationError{Cause: err}
	}

	s.afterCreate(ctx, in.UserID, key, created)
	return created, nil
}

func (s *Service) createInTx(ctx context.Context, ord Order, items []cart.Item) (Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	actor := "user:" + strconv.Itoa(ord.UserID)
	for _, it := range items {
		if _, err := s.ledger.DecrementTx(ctx, tx, it.ProductID, it.Quantity, actor); err != nil {
			return Order{}, err
		}
	}

	created, err := s.repo.CreateTx(ctx, tx, ord)
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	return created, nil
}

// resolveLines snapshots catalog prices and fails fast on missing or
// inactive products before anything is mutated. With checkStock set it also
// refuses obviously under-stocked lines; only the ledger's locked decrement
// is authoritative.
func (s *Service) resolveLines(ctx context.Context, in CheckoutInput, checkStock bool) ([]pricing.Line, []Item, error) {
	ids := make([]int, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.ledger.ListByIDs(ctx, ids)
	if err != nil {
		return nil, nil, &CreationError{Cause: err}
	}
	byID := make(map[int]inventory.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]pricing.Line, 0, len(in.Items))
	items := make([]Item, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("product %d: %w", it.ProductID, inventory.ErrNotFound)
		}
		if !p.Active {
			return nil, nil, fmt.Errorf("product %d: %w", it.ProductID, ErrInactiveProduct)
		}
		if checkStock && p.StockQuantity < it.Quantity {
			return nil, nil, &inventory.InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: p.StockQuantity,
			}
		}
		lines = append(lines, pricing.Line{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: it.Quantity})
		items = append(items, Item{
			ProductID:  p.ID,
			StoreID:    it.StoreID,
			Quantity:   it.Quantity,
			UnitPrice:  p.Price,
			TotalPrice: round2(p.Price * float64(it.Quantity)),
		})
	}
	return lines, items, nil
}

// replay resolves an already-used idempotency key: Redis fast path first,
// then the unique-indexed column. Keys are scoped to their owner on both
// paths; an order held under the key by a different user never replays.
func (s *Service) replay(ctx context.Context, userID int, key string) (Order, bool) {
	scope := strconv.Itoa(userID)
	if s.idem != nil {
		if id, ok, err := s.idem.Recall(ctx, scope, key); err != nil {
			s.log.Warn("idempotency recall failed", "err", err)
		} else if ok {
			if ord, err := s.repo.GetByID(ctx, id); err == nil && ord.UserID == userID {
				return ord, true
			}
		}
	}

	ord, err := s.repo.GetByIdempotencyKey(ctx, key)
	if err == nil {
		if ord.UserID == userID {
			return ord, true
		}
		return Order{}, false
	}
	if !errors.Is(err, ErrNotFound) {
		s.log.Warn("idempotency lookup failed", "err", err)
	}
	return Order{}, false
}

// afterCreate runs the post-commit side effects. None of them may un-create
// the order; failures are logged and swallowed.
func (s *Service) afterCreate(ctx context.Context, userID int, key string, ord Order) {
	if s.idem != nil {
		if err := s.idem.Remember(ctx, strconv.Itoa(userID), key, ord.ID); err != nil {
			s.log.Warn("idempotency remember failed", "order_id", ord.ID, "err", err)
		}
	}
	s.notifier.Notify(ctx, "order.created", notify.AudienceStaff, ord)
	ev := CreatedEvent{OrderID: ord.ID, Code: ord.Code, UserID: ord.UserID, Total: ord.Total, Status: ord.Status}
	if err := s.events.PublishEvent(ctx, TopicOrderCreated, ord.Code, ev); err != nil {
		s.log.Warn("order created event publish failed", "order_id", ord.ID, "err", err)
	}
}

// CancelOrder is an administrative override allowed from pending_payment,
// confirmed and processing. It restores stock for every line and, when a
// completed capture exists, issues a compensating refund; a refund failure
// rolls the cancellation back.
func (s *Service) CancelOrder(ctx context.Context, orderID int, reason, actor string) (Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, &CancellationError{Cause: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ord, err := s.repo.GetByIDForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Order{}, err
		}
		return Order{}, &CancellationError{Cause: err}
	}

	switch ord.Status {
	case StatusPendingPayment, StatusConfirmed, StatusProcessing:
	default:
		return Order{}, &CancellationError{Current: ord.Status}
	}

	ledgerActor := "cancel:" + ord.Code
	if actor != "" {
		ledgerActor = actor
	}
	for _, it := range ord.Items {
		if _, err := s.ledger.RestoreTx(ctx, tx, it.ProductID, it.Quantity, ledgerActor); err != nil {
			return Order{}, &CancellationError{Cause: err}
		}
	}

	note := "Order cancelled"
	if reason != "" {
		note += ": " + reason
	}
	if actor != "" {
		note += " (by " + actor + ")"
	}
	if err := s.repo.UpdateStatusTx(ctx, tx, ord.ID, StatusCancelled); err != nil {
		return Order{}, &CancellationError{Cause: err}
	}
	if err := s.repo.AppendNoteTx(ctx, tx, ord.ID, note); err != nil {
		return Order{}, &CancellationError{Cause: err}
	}
	if err := s.repo.AppendHistoryTx(ctx, tx, ord.ID, StatusCancelled, note); err != nil {
		return Order{}, &CancellationError{Cause: err}
	}

	refunded := false
	if ord.PaymentCaptureRef != "" {
		if _, err := s.payments.Refund(ctx, ord.PaymentCaptureRef, ord.Total); err != nil {
			// the order must not end up cancelled-but-unrefunded
			return Order{}, &CancellationError{Cause: fmt.Errorf("refund failed: %w", err)}
		}
		refunded = true
	}

	if err := tx.Commit(); err != nil {
		return Order{}, &CancellationError{Cause: err}
	}

	ord.Status = StatusCancelled
	s.notifier.Notify(ctx, "order.cancelled", notify.AudienceCustomer, ord)
	ev := CancelledEvent{OrderID: ord.ID, Code: ord.Code, UserID: ord.UserID, Reason: reason, Refunded: refunded}
	if err := s.events.PublishEvent(ctx, TopicOrderCancelled, ord.Code, ev); err != nil {
		s.log.Warn("order cancelled event publish failed", "order_id", ord.ID, "err", err)
	}
	return ord, nil
}

// RefundOrder issues a refund against the order's capture, defaulting to
// the full total, and marks the order refunded.
func (s *Service) RefundOrder(ctx context.Context, orderID int, amount *float64) (Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ord, err := s.repo.GetByIDForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return Order{}, err
	}
	if ord.PaymentCaptureRef == "" {
		return Order{}, ErrNoCaptureRef
	}

	amt := ord.Total
	if amount != nil {
		amt = *amount
	}
	if amt <= 0 || amt > ord.Total {
		return Order{}, ErrInvalidRefundAmount
	}

	res, err := s.payments.Refund(ctx, ord.PaymentCaptureRef, amt)
	if err != nil {
		return Order{}, fmt.Errorf("refund failed: %w", err)
	}

	note := fmt.Sprintf("Refunded %.2f (ref %s)", res.Amount, res.RefundRef)
	if err := s.repo.UpdateStatusTx(ctx, tx, ord.ID, StatusRefunded); err != nil {
		return Order{}, err
	}
	if err := s.repo.AppendNoteTx(ctx, tx, ord.ID, note); err != nil {
		return Order{}, err
	}
	if err := s.repo.AppendHistoryTx(ctx, tx, ord.ID, StatusRefunded, note); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return Order{}, err
	}

	ord.Status = StatusRefunded
	s.notifier.Notify(ctx, "order.refunded", notify.AudienceCustomer, ord)
	return ord, nil
}

// Quote prices a prospective cart without touching inventory or persisting
// anything. An empty cart is allowed so the UI can show which discounts the
// user would qualify for.
func (s *Service) Quote(ctx context.Context, userID, storeID int, items []cart.Item) (pricing.Totals, error) {
	if err := cart.Validate(items); err != nil {
		return pricing.Totals{}, err
	}

	lines := make([]pricing.Line, 0, len(items))
	if len(items) > 0 {
		// a quote is advisory, so shortages do not block pricing
		resolved, _, err := s.resolveLines(ctx, CheckoutInput{UserID: userID, StoreID: storeID, Items: items}, false)
		if err != nil {
			return pricing.Totals{}, err
		}
		lines = resolved
	}

	prior, err := s.repo.CountActiveByUser(ctx, userID)
	if err != nil {
		return pricing.Totals{}, err
	}

	engine := pricing.NewEngine(pricing.Snapshot(ctx, s.pricing, storeID), s.log)
	return engine.ComputeTotals(lines, pricing.Options{
		UserID:      userID,
		StoreID:     storeID,
		PriorOrders: prior,
		AllowEmpty:  true,
	})
}

func (s *Service) GetByID(ctx context.Context, id int) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) History(ctx context.Context, id int) ([]StatusHistory, error) {
	return s.repo.ListHistory(ctx, id)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isStructural(err error) bool {
	var itemErr *cart.InvalidItemError
	var cartErr *pricing.InvalidCartError
	return errors.As(err, &itemErr) || errors.As(err, &cartErr) ||
		errors.Is(err, inventory.ErrNotFound) || errors.Is(err, ErrInactiveProduct)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
