package reporting

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// ItemTotal is the on-hand quantity for one item summed across warehouses.
type ItemTotal struct {
	Item  inventory.ItemRef
	Total decimal.Decimal
}

// Repository runs the read-side aggregate queries for reports.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CurrentTotals sums inventory lines per item across all warehouses. An empty
// kind includes every item.
func (r *Repository) CurrentTotals(ctx context.Context, kind inventory.ItemKind) ([]ItemTotal, error) {
	var kindFilter any
	if kind != "" {
		kindFilter = string(kind)
	}
	rows, err := r.pool.Query(ctx, `SELECT item_kind, item_id, COALESCE(SUM(qty), 0)
FROM inventory_lines
WHERE ($1::text IS NULL OR item_kind=$1)
GROUP BY item_kind, item_id
ORDER BY item_kind, item_id`, kindFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := []ItemTotal{}
	for rows.Next() {
		var t ItemTotal
		var k string
		if err := rows.Scan(&k, &t.Item.ID, &t.Total); err != nil {
			return nil, err
		}
		t.Item.Kind = inventory.ItemKind(k)
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
