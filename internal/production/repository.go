package production

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

// Repository persists production orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	CreateOrder(ctx context.Context, order Order) (int64, error)
	InsertComponent(ctx context.Context, component Component) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error
	SetComponentLedgerEntry(ctx context.Context, componentID, entryID int64) error
	SetOutputLedgerEntry(ctx context.Context, orderID, entryID int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads an order header with its components.
func (r *Repository) Get(ctx context.Context, id int64) (Order, []Component, error) {
	var order Order
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, number, warehouse_id, product_id, qty, status, doc_ref, COALESCE(output_ledger_entry_id, 0), note, created_by, created_at
FROM production_orders WHERE id=$1`, id).
		Scan(&order.ID, &order.Number, &order.WarehouseID, &order.ProductID, &order.Quantity, &status, &order.DocRef, &order.OutputLedgerEntryID, &order.Note, &order.CreatedBy, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, nil, ErrOrderNotFound
		}
		return Order{}, nil, err
	}
	order.Status = OrderStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT id, order_id, item_kind, item_id, qty, COALESCE(ledger_entry_id, 0)
FROM production_order_components WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, nil, err
	}
	defer rows.Close()
	var components []Component
	for rows.Next() {
		var component Component
		var kind string
		if err := rows.Scan(&component.ID, &component.OrderID, &kind, &component.Item.ID, &component.Quantity, &component.LedgerEntryID); err != nil {
			return Order{}, nil, err
		}
		component.Item.Kind = inventory.ItemKind(kind)
		components = append(components, component)
	}
	return order, components, rows.Err()
}

func (r *txRepository) CreateOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO production_orders (number, warehouse_id, product_id, qty, status, doc_ref, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		order.Number, order.WarehouseID, order.ProductID, order.Quantity, string(order.Status), order.DocRef, order.Note, order.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertComponent(ctx context.Context, component Component) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO production_order_components (order_id, item_kind, item_id, qty)
VALUES ($1,$2,$3,$4) RETURNING id`,
		component.OrderID, string(component.Item.Kind), component.Item.ID, component.Quantity).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE production_orders SET status=$1 WHERE id=$2`, string(status), orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *txRepository) SetComponentLedgerEntry(ctx context.Context, componentID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_order_components SET ledger_entry_id=$1 WHERE id=$2`, entryID, componentID)
	return err
}

func (r *txRepository) SetOutputLedgerEntry(ctx context.Context, orderID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_orders SET output_ledger_entry_id=$1 WHERE id=$2`, entryID, orderID)
	return err
}
