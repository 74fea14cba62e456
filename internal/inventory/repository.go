package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

// Repository persists inventory lines and ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the engine.
type TxRepository interface {
	GetLineForUpdate(ctx context.Context, warehouseID int64, item ItemRef) (InventoryLine, error)
	UpsertLine(ctx context.Context, line InventoryLine) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// ErrLineNotFound indicates a missing inventory line. Absence means zero stock,
// not a failure; the engine creates the line on first receipt.
var ErrLineNotFound = errors.New("inventory line not found")

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetQuantity returns the current on-hand quantity. A missing line reads as zero.
func (r *Repository) GetQuantity(ctx context.Context, warehouseID int64, item ItemRef) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT qty FROM inventory_lines WHERE warehouse_id=$1 AND item_kind=$2 AND item_id=$3`,
		warehouseID, string(item.Kind), item.ID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return qty, nil
}

// ListLines returns all inventory lines for a warehouse ordered by item key.
func (r *Repository) ListLines(ctx context.Context, warehouseID int64) ([]InventoryLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT warehouse_id, item_kind, item_id, qty, updated_at
FROM inventory_lines WHERE warehouse_id=$1 ORDER BY item_kind, item_id`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []InventoryLine{}
	for rows.Next() {
		var line InventoryLine
		var kind string
		if err := rows.Scan(&line.WarehouseID, &kind, &line.Item.ID, &line.Quantity, &line.UpdatedAt); err != nil {
			return nil, err
		}
		line.Item.Kind = ItemKind(kind)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListLedger returns ledger entries matching the filter, oldest first.
func (r *Repository) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var kind any
	var itemID any
	if filter.Item != nil {
		kind = string(filter.Item.Kind)
		itemID = filter.Item.ID
	}
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, item_kind, item_id, direction, qty, doc_type, doc_id, posted_at
FROM ledger_entries
WHERE ($1::bigint IS NULL OR warehouse_id=$1)
  AND ($2::text IS NULL OR item_kind=$2)
  AND ($3::bigint IS NULL OR item_id=$3)
  AND posted_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $6 OFFSET $7`, nullInt(filter.WarehouseID), kind, itemID, nullTime(filter.From), nullTime(filter.To), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		var k, dir, docType string
		if err := rows.Scan(&e.ID, &e.WarehouseID, &k, &e.Item.ID, &dir, &e.Quantity, &docType, &e.DocID, &e.PostedAt); err != nil {
			return nil, err
		}
		e.Item.Kind = ItemKind(k)
		e.Direction = Direction(dir)
		e.DocType = DocumentType(docType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountLedger counts entries matching the filter, ignoring limit and offset.
func (r *Repository) CountLedger(ctx context.Context, filter LedgerFilter) (int, error) {
	var kind any
	var itemID any
	if filter.Item != nil {
		kind = string(filter.Item.Kind)
		itemID = filter.Item.ID
	}
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*)
FROM ledger_entries
WHERE ($1::bigint IS NULL OR warehouse_id=$1)
  AND ($2::text IS NULL OR item_kind=$2)
  AND ($3::bigint IS NULL OR item_id=$3)
  AND posted_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')`,
		nullInt(filter.WarehouseID), kind, itemID, nullTime(filter.From), nullTime(filter.To)).Scan(&total)
	return total, err
}

// Summarize aggregates ledger quantity per (item, direction) within the window.
// Each call recomputes from persisted entries; nothing is cached.
func (r *Repository) Summarize(ctx context.Context, from, to time.Time, kind ItemKind) ([]MovementTotal, error) {
	var kindFilter any
	if kind != "" {
		kindFilter = string(kind)
	}
	rows, err := r.pool.Query(ctx, `SELECT item_kind, item_id, direction, COALESCE(SUM(qty), 0)
FROM ledger_entries
WHERE posted_at BETWEEN COALESCE($1, '-infinity') AND COALESCE($2, 'infinity')
  AND ($3::text IS NULL OR item_kind=$3)
GROUP BY item_kind, item_id, direction
ORDER BY item_kind, item_id, direction`, nullTime(from), nullTime(to), kindFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := []MovementTotal{}
	for rows.Next() {
		var t MovementTotal
		var k, dir string
		if err := rows.Scan(&k, &t.Item.ID, &dir, &t.Total); err != nil {
			return nil, err
		}
		t.Item.Kind = ItemKind(k)
		t.Direction = Direction(dir)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *txRepository) GetLineForUpdate(ctx context.Context, warehouseID int64, item ItemRef) (InventoryLine, error) {
	var line InventoryLine
	var kind string
	err := r.tx.QueryRow(ctx, `SELECT warehouse_id, item_kind, item_id, qty, updated_at
FROM inventory_lines WHERE warehouse_id=$1 AND item_kind=$2 AND item_id=$3 FOR UPDATE`,
		warehouseID, string(item.Kind), item.ID).
		Scan(&line.WarehouseID, &kind, &line.Item.ID, &line.Quantity, &line.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InventoryLine{WarehouseID: warehouseID, Item: item, Quantity: decimal.Zero}, ErrLineNotFound
		}
		return InventoryLine{}, err
	}
	line.Item.Kind = ItemKind(kind)
	return line, nil
}

func (r *txRepository) UpsertLine(ctx context.Context, line InventoryLine) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_lines (warehouse_id, item_kind, item_id, qty, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (warehouse_id, item_kind, item_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`,
		line.WarehouseID, string(line.Item.Kind), line.Item.ID, line.Quantity)
	return err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (warehouse_id, item_kind, item_id, direction, qty, doc_type, doc_id, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		entry.WarehouseID, string(entry.Item.Kind), entry.Item.ID, string(entry.Direction), entry.Quantity,
		string(entry.DocType), entry.DocID, entry.PostedAt).Scan(&id)
	return id, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
