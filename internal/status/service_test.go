package status

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/khayson/barffoods-backend/internal/order"
)

type captureEvents struct {
	topics []string
	keys   []string
}

func (c *captureEvents) PublishEvent(_ context.Context, topic, key string, _ any) error {
	c.topics = append(c.topics, topic)
	c.keys = append(c.keys, key)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(_ context.Context, _, _ string, _ any) {}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *captureEvents, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := &captureEvents{}
	svc := NewService(db, order.NewPostgresRepository(db), events, noopNotifier{}, log)
	return svc, mock, events, func() { db.Close() }
}

func orderRows(id int, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "code", "user_id", "address_id", "slot_id", "subtotal", "discount", "tax",
		"shipping_cost", "total", "status", "payment_method", "payment_capture_ref",
		"notes", "idempotency_key", "created_at", "updated_at",
	}).AddRow(id, "BF-20260829-ABCDEF", 7, 3, nil, 100, 0, 7, 5, 112, status, "card", "cap_123", nil, "key-1", now, now)
}

func emptyItemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "order_id", "product_id", "store_id", "quantity", "unit_price", "total_price", "status"})
}

func TestUpdateStatus_ValidTransition(t *testing.T) {
	svc, mock, events, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(42).
		WillReturnRows(orderRows(42, order.StatusConfirmed))
	mock.ExpectQuery("FROM order_items").WillReturnRows(emptyItemRows())
	mock.ExpectExec("UPDATE orders SET status").WithArgs(42, order.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// exactly one history row per transition
	mock.ExpectExec("INSERT INTO order_status_history").
		WithArgs(42, order.StatusProcessing, "Status changed from confirmed to processing (by ops@barffoods.test)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ord, err := svc.UpdateStatus(context.Background(), 42, order.StatusProcessing, "", "ops@barffoods.test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ord.Status != order.StatusProcessing {
		t.Errorf("status = %q, want processing", ord.Status)
	}
	if len(events.topics) != 1 || events.topics[0] != TopicStatusChanged {
		t.Errorf("events = %v, want one orders.status_changed", events.topics)
	}
	if events.keys[0] != "BF-20260829-ABCDEF" {
		t.Errorf("event key = %q, want the order code", events.keys[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateStatus_CustomNoteWins(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(42).
		WillReturnRows(orderRows(42, order.StatusShipped))
	mock.ExpectQuery("FROM order_items").WillReturnRows(emptyItemRows())
	mock.ExpectExec("UPDATE orders SET status").WithArgs(42, order.StatusDelivered).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_status_history").
		WithArgs(42, order.StatusDelivered, "Left at the door").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if _, err := svc.UpdateStatus(context.Background(), 42, order.StatusDelivered, "Left at the door", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateStatus_RejectsNoOp(t *testing.T) {
	svc, mock, events, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(42).
		WillReturnRows(orderRows(42, order.StatusShipped))
	mock.ExpectQuery("FROM order_items").WillReturnRows(emptyItemRows())
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), 42, order.StatusShipped, "", "")
	if !IsTransitionError(err) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if len(events.topics) != 0 {
		t.Errorf("rejected transition must not publish, got %v", events.topics)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateStatus_RejectsBackwardsMove(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(42).
		WillReturnRows(orderRows(42, order.StatusDelivered))
	mock.ExpectQuery("FROM order_items").WillReturnRows(emptyItemRows())
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), 42, order.StatusShipped, "", "")
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if te.Current != order.StatusDelivered || te.Next != order.StatusShipped {
		t.Errorf("unexpected error detail: %+v", te)
	}
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	svc, mock, _, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(404).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "code", "user_id", "address_id", "slot_id", "subtotal", "discount", "tax",
			"shipping_cost", "total", "status", "payment_method", "payment_capture_ref",
			"notes", "idempotency_key", "created_at", "updated_at",
		}))
	mock.ExpectRollback()

	if _, err := svc.UpdateStatus(context.Background(), 404, order.StatusProcessing, "", ""); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected order.ErrNotFound, got %v", err)
	}
}
