package order

import (
	"context"
	"database/sql"
)

// Repository defines persistence operations for orders. Methods with a Tx
// suffix join a caller-owned transaction, which is how the lifecycle
// service keeps stock decrements and order rows atomic.
type Repository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, ord Order) (Order, error)
	GetByID(ctx context.Context, id int) (Order, error)
	GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id int) (Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Order, error)
	ListByUser(ctx context.Context, userID int) ([]Order, error)
	CountActiveByUser(ctx context.Context, userID int) (int, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int, status string) error
	AppendNoteTx(ctx context.Context, tx *sql.Tx, id int, note string) error
	AppendHistoryTx(ctx context.Context, tx *sql.Tx, id int, status, note string) error
	ListHistory(ctx context.Context, id int) ([]StatusHistory, error)
}
