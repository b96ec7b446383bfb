package inventory

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

const (
	getProductQuery = `
		SELECT product_id, product_name, product_price, stock_quantity, active
		FROM products
		WHERE product_id = $1
	`
	listProductsQuery = `
		SELECT product_id, product_name, product_price, stock_quantity, active
		FROM products
		WHERE product_id = ANY($1::int[])
		ORDER BY array_position($1::int[], product_id)
	`
)

// GetByID is a plain (non-locking) read of the stock projection.
func (l *Ledger) GetByID(ctx context.Context, productID int) (Product, error) {
	var p Product
	err := l.db.QueryRowContext(ctx, getProductQuery, productID).
		Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.Active)
	if err == sql.ErrNoRows {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// ListByIDs returns the projections for the given ids, ordered like the
// input. Unknown ids are simply absent from the result.
func (l *Ledger) ListByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	rows, err := l.db.QueryContext(ctx, listProductsQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockQuantity, &p.Active); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
