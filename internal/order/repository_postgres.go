package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

const (
	orderColumns = `id, code, user_id, address_id, slot_id, subtotal, discount, tax, shipping_cost, total,
		status, payment_method, payment_capture_ref, notes, idempotency_key, created_at, updated_at`

	insertOrderQuery = `
		INSERT INTO orders (code, user_id, address_id, slot_id, subtotal, discount, tax, shipping_cost, total,
			status, payment_method, payment_capture_ref, notes, idempotency_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, now(), now())
		RETURNING id, created_at, updated_at
	`
	insertItemQuery = `
		INSERT INTO order_items (order_id, product_id, store_id, quantity, unit_price, total_price, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`
	getOrderQuery         = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderLockQuery     = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	getOrderByKeyQuery    = `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`
	listOrdersByUserQuery = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY id DESC`
	countActiveQuery      = `SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status <> 'cancelled'`
	codeExistsQuery       = `SELECT EXISTS(SELECT 1 FROM orders WHERE code = $1)`
	updateStatusQuery     = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`
	appendNoteQuery       = `UPDATE orders SET notes = trim(both E'\n' from coalesce(notes, '') || E'\n' || $2), updated_at = now() WHERE id = $1`
	insertHistoryQuery    = `INSERT INTO order_status_history (order_id, status, note, created_at) VALUES ($1,$2,$3, now())`
	listHistoryQuery      = `SELECT id, order_id, status, note, created_at FROM order_status_history WHERE order_id = $1 ORDER BY id`
	listItemsQuery        = `
		SELECT id, order_id, product_id, store_id, quantity, unit_price, total_price, status
		FROM order_items
		WHERE order_id = ANY($1::int[])
		ORDER BY id
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateTx persists the order, its items and the initial history row inside
// the caller's transaction. The order code is generated with a
// retry-on-collision loop; idempotency-key conflicts surface as the
// database's unique-violation error for the caller to resolve.
func (r *PostgresRepository) CreateTx(ctx context.Context, tx *sql.Tx, ord Order) (Order, error) {
	code, err := r.uniqueCode(ctx, tx)
	if err != nil {
		return Order{}, err
	}
	ord.Code = code

	err = tx.QueryRowContext(ctx, insertOrderQuery,
		ord.Code, ord.UserID, ord.AddressID, ord.SlotID,
		ord.Subtotal, ord.Discount, ord.Tax, ord.ShippingCost, ord.Total,
		ord.Status, nullStr(ord.PaymentMethod), nullStr(ord.PaymentCaptureRef), nullStr(ord.Notes), ord.IdempotencyKey,
	).Scan(&ord.ID, &ord.CreatedAt, &ord.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	for i := range ord.Items {
		it := &ord.Items[i]
		it.OrderID = ord.ID
		if err := tx.QueryRowContext(ctx, insertItemQuery,
			ord.ID, it.ProductID, it.StoreID, it.Quantity, it.UnitPrice, it.TotalPrice, nullStr(it.Status),
		).Scan(&it.ID); err != nil {
			return Order{}, err
		}
	}

	if _, err := tx.ExecContext(ctx, insertHistoryQuery, ord.ID, ord.Status, "Order created"); err != nil {
		return Order{}, err
	}
	return ord, nil
}

func (r *PostgresRepository) uniqueCode(ctx context.Context, tx *sql.Tx) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := NewCode()
		var exists bool
		if err := tx.QueryRowContext(ctx, codeExistsQuery, code).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique order code")
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Order, error) {
	ord, err := scanOrder(r.db.QueryRowContext(ctx, getOrderQuery, id))
	if err != nil {
		return Order{}, err
	}
	return r.withItems(ctx, ord)
}

// GetByIDForUpdateTx locks the order row for the remainder of the caller's
// transaction so cancellation and status transitions cannot race silently.
func (r *PostgresRepository) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id int) (Order, error) {
	ord, err := scanOrder(tx.QueryRowContext(ctx, getOrderLockQuery, id))
	if err != nil {
		return Order{}, err
	}
	items, err := r.listItems(ctx, tx, []int{ord.ID})
	if err != nil {
		return Order{}, err
	}
	ord.Items = items[ord.ID]
	return ord, nil
}

func (r *PostgresRepository) GetByIdempotencyKey(ctx context.Context, key string) (Order, error) {
	ord, err := scanOrder(r.db.QueryRowContext(ctx, getOrderByKeyQuery, key))
	if err != nil {
		return Order{}, err
	}
	return r.withItems(ctx, ord)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, listOrdersByUserQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	ids := make([]int, 0)
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, ord)
		ids = append(ids, ord.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *PostgresRepository) CountActiveByUser(ctx context.Context, userID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countActiveQuery, userID).Scan(&n)
	return n, err
}

func (r *PostgresRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id int, status string) error {
	res, err := tx.ExecContext(ctx, updateStatusQuery, id, status)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AppendNoteTx(ctx context.Context, tx *sql.Tx, id int, note string) error {
	_, err := tx.ExecContext(ctx, appendNoteQuery, id, note)
	return err
}

func (r *PostgresRepository) AppendHistoryTx(ctx context.Context, tx *sql.Tx, id int, status, note string) error {
	_, err := tx.ExecContext(ctx, insertHistoryQuery, id, status, note)
	return err
}

func (r *PostgresRepository) ListHistory(ctx context.Context, id int) ([]StatusHistory, error) {
	rows, err := r.db.QueryContext(ctx, listHistoryQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StatusHistory, 0)
	for rows.Next() {
		var h StatusHistory
		var note sql.NullString
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &note, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Note = note.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// ---- helpers --------------------------------------------------------------

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *PostgresRepository) withItems(ctx context.Context, ord Order) (Order, error) {
	items, err := r.listItems(ctx, r.db, []int{ord.ID})
	if err != nil {
		return Order{}, err
	}
	ord.Items = items[ord.ID]
	return ord, nil
}

func (r *PostgresRepository) listItems(ctx context.Context, q querier, orderIDs []int) (map[int][]Item, error) {
	out := make(map[int][]Item)
	if len(orderIDs) == 0 {
		return out, nil
	}

	rows, err := q.QueryContext(ctx, listItemsQuery, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		var status sql.NullString
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.StoreID, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &status); err != nil {
			return nil, err
		}
		it.Status = status.String
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(scanner rowScanner) (Order, error) {
	var ord Order
	var slotID sql.NullInt64
	var method, captureRef, notes sql.NullString

	err := scanner.Scan(
		&ord.ID, &ord.Code, &ord.UserID, &ord.AddressID, &slotID,
		&ord.Subtotal, &ord.Discount, &ord.Tax, &ord.ShippingCost, &ord.Total,
		&ord.Status, &method, &captureRef, &notes, &ord.IdempotencyKey,
		&ord.CreatedAt, &ord.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	if slotID.Valid {
		v := int(slotID.Int64)
		ord.SlotID = &v
	}
	ord.PaymentMethod = method.String
	ord.PaymentCaptureRef = captureRef.String
	ord.Notes = notes.String
	return ord, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
