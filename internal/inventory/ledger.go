package inventory

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/khayson/barffoods-backend/internal/cart"
)

const (
	lockProductQuery = `
		SELECT product_id, product_name, product_price, stock_quantity, active
		FROM products
		WHERE product_id = $1
		FOR UPDATE
	`
	setStockQuery = `UPDATE products SET stock_quantity = $2, updated_at = now() WHERE product_id = $1`
	auditQuery    = `
		INSERT INTO stock_audits (product_id, delta, before_qty, after_qty, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
)

// Tx is the subset of *sql.Tx the ledger needs, so lifecycle code can hand
// its own transaction in.
type Tx interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Ledger is the sole authority for product stock counts. Mutations take a
// row-level lock so two purchases racing on the last unit serialize at the
// database, never oversell.
type Ledger struct {
	db  *sql.DB
	log *slog.Logger
}

func NewLedger(db *sql.DB, log *slog.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// DecrementTx re-reads the current stock under an exclusive row lock inside
// the caller's transaction and only then compares against qty. On refusal
// the caller is expected to roll back; the refusal audit is written outside
// the transaction so it survives that rollback.
func (l *Ledger) DecrementTx(ctx context.Context, tx Tx, productID, qty int, actor string) (Product, error) {
	if qty <= 0 {
		return Product{}, &InvalidQuantityError{Qty: qty}
	}

	p, err := l.lock(ctx, tx, productID)
	if err != nil {
		return Product{}, err
	}
	if p.StockQuantity < qty {
		l.auditRefusal(ctx, p.ID, qty, p.StockQuantity, actor)
		return Product{}, &InsufficientStockError{ProductID: productID, Requested: qty, Available: p.StockQuantity}
	}

	after := p.StockQuantity - qty
	if _, err := tx.ExecContext(ctx, setStockQuery, productID, after); err != nil {
		return Product{}, err
	}
	if err := l.audit(ctx, tx, p.ID, -qty, p.StockQuantity, after, actor, "decrement"); err != nil {
		return Product{}, err
	}
	p.StockQuantity = after
	return p, nil
}

// RestoreTx adds qty back under the same lock discipline, so concurrent
// restores and decrements on one product serialize. There is no upper
// bound; it is used for cancellations and returns.
func (l *Ledger) RestoreTx(ctx context.Context, tx Tx, productID, qty int, actor string) (Product, error) {
	if qty <= 0 {
		return Product{}, &InvalidQuantityError{Qty: qty}
	}

	p, err := l.lock(ctx, tx, productID)
	if err != nil {
		return Product{}, err
	}

	after := p.StockQuantity + qty
	if _, err := tx.ExecContext(ctx, setStockQuery, productID, after); err != nil {
		return Product{}, err
	}
	if err := l.audit(ctx, tx, p.ID, qty, p.StockQuantity, after, actor, "restore"); err != nil {
		return Product{}, err
	}
	p.StockQuantity = after
	return p, nil
}

// Decrement runs DecrementTx in its own transaction.
func (l *Ledger) Decrement(ctx context.Context, productID, qty int, actor string) (Product, error) {
	return l.mutate(ctx, func(tx *sql.Tx) (Product, error) {
		return l.DecrementTx(ctx, tx, productID, qty, actor)
	})
}

// Restore runs RestoreTx in its own transaction.
func (l *Ledger) Restore(ctx context.Context, productID, qty int, actor string) (Product, error) {
	return l.mutate(ctx, func(tx *sql.Tx) (Product, error) {
		return l.RestoreTx(ctx, tx, productID, qty, actor)
	})
}

func (l *Ledger) mutate(ctx context.Context, fn func(tx *sql.Tx) (Product, error)) (Product, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	p, err := fn(tx)
	if err != nil {
		return Product{}, err
	}
	if err := tx.Commit(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// CheckAvailable is a non-locking, advisory read. A positive answer is not
// a reservation; only DecrementTx is authoritative.
func (l *Ledger) CheckAvailable(ctx context.Context, productID, qty int) (bool, error) {
	if qty <= 0 {
		return false, &InvalidQuantityError{Qty: qty}
	}
	p, err := l.GetByID(ctx, productID)
	if err != nil {
		return false, err
	}
	return p.Active && p.StockQuantity >= qty, nil
}

// CheckBulk validates every line of a prospective order without mutating
// anything and returns the under-stocked (or unknown) lines.
func (l *Ledger) CheckBulk(ctx context.Context, items []cart.Item) ([]Shortage, error) {
	if err := cart.Validate(items); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := l.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	shortages := make([]Shortage, 0)
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok || !p.Active {
			shortages = append(shortages, Shortage{ProductID: it.ProductID, Requested: it.Quantity})
			continue
		}
		if p.StockQuantity < it.Quantity {
			shortages = append(shortages, Shortage{ProductID: it.ProductID, Requested: it.Quantity, Available: p.StockQuantity})
		}
	}
	return shortages, nil
}

func (l *Ledger) lock(ctx context.Context, tx Tx, productID int) (Product, error) {
	var p Product
	err := tx.QueryRowContext(ctx, lockProductQuery, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.Active)
	if err == sql.ErrNoRows {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// audit appends one reconciliation record inside the mutation's
// transaction, so the record and the stock change commit or roll back
// together.
func (l *Ledger) audit(ctx context.Context, tx Tx, productID, delta, before, after int, actor, reason string) error {
	if actor == "" {
		actor = "system"
	}
	_, err := tx.ExecContext(ctx, auditQuery, productID, delta, before, after, actor, reason, time.Now().UTC())
	return err
}

// auditRefusal records a refused decrement on a separate connection so the
// record survives the caller's rollback. Best-effort: abuse detection must
// not block the error path.
func (l *Ledger) auditRefusal(ctx context.Context, productID, requested, available int, actor string) {
	if actor == "" {
		actor = "system"
	}
	if _, err := l.db.ExecContext(ctx, auditQuery, productID, -requested, available, available, actor, "insufficient_stock", time.Now().UTC()); err != nil {
		l.log.Error("stock refusal audit failed", "product_id", productID, "err", err)
	}
}
