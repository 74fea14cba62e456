package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

// Repository persists sales orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads an order header with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (SalesOrder, []SalesOrderLine, error) {
	var order SalesOrder
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, customer_id, status, created_at, updated_at FROM sales_orders WHERE id=$1`, id).
		Scan(&order.ID, &order.Number, &order.CustomerID, &status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalesOrder{}, nil, ErrOrderNotFound
		}
		return SalesOrder{}, nil, err
	}
	order.Status = SalesOrderStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, item_kind, item_id, qty_ordered, qty_fulfilled
FROM sales_order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return SalesOrder{}, nil, err
	}
	defer rows.Close()
	var lines []SalesOrderLine
	for rows.Next() {
		var line SalesOrderLine
		var kind string
		if err := rows.Scan(&line.ID, &line.OrderID, &kind, &line.Item.ID, &line.QuantityOrdered, &line.QuantityFulfilled); err != nil {
			return SalesOrder{}, nil, err
		}
		line.Item.Kind = inventory.ItemKind(kind)
		lines = append(lines, line)
	}
	return order, lines, rows.Err()
}

// AddFulfilled increments the fulfilled quantity on the matching line and
// flips the order to FULFILLED once every line is complete. The row lock keeps
// two issue notes against the same order from losing an update.
func (r *Repository) AddFulfilled(ctx context.Context, orderID int64, item inventory.ItemRef, qty decimal.Decimal) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var ordered, fulfilled decimal.Decimal
		var lineID int64
		err := tx.QueryRow(ctx, `SELECT id, qty_ordered, qty_fulfilled FROM sales_order_lines
WHERE order_id=$1 AND item_kind=$2 AND item_id=$3 FOR UPDATE`,
			orderID, string(item.Kind), item.ID).Scan(&lineID, &ordered, &fulfilled)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return err
		}

		next := fulfilled.Add(qty)
		if next.GreaterThan(ordered) {
			return ErrOverFulfilled
		}
		if _, err := tx.Exec(ctx, `UPDATE sales_order_lines SET qty_fulfilled=$1 WHERE id=$2`, next, lineID); err != nil {
			return err
		}

		var open int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM sales_order_lines WHERE order_id=$1 AND qty_fulfilled < qty_ordered`, orderID).Scan(&open); err != nil {
			return err
		}
		if open == 0 {
			if _, err := tx.Exec(ctx, `UPDATE sales_orders SET status=$1, updated_at=NOW() WHERE id=$2`, string(SalesOrderStatusFulfilled), orderID); err != nil {
				return err
			}
		}
		return nil
	})
}
