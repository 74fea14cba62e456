package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// Resolver validates that identifiers reference real master-data rows. The
// movement engine treats warehouse and item ids as opaque keys; workflows run
// their line items through the resolver first.
type Resolver struct {
	pool *pgxpool.Pool
}

// NewResolver constructs Resolver.
func NewResolver(pool *pgxpool.Pool) *Resolver {
	return &Resolver{pool: pool}
}

// CheckWarehouse verifies the warehouse exists.
func (r *Resolver) CheckWarehouse(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: warehouse %d", ErrUnknownReference, id)
	}
	var found int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM warehouses WHERE id=$1`, id).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: warehouse %d", ErrUnknownReference, id)
		}
		return err
	}
	return nil
}

// CheckItem verifies the discriminated item reference resolves to a material
// or product row.
func (r *Resolver) CheckItem(ctx context.Context, item inventory.ItemRef) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownReference, err)
	}
	var table string
	switch item.Kind {
	case inventory.ItemKindMaterial:
		table = "materials"
	case inventory.ItemKindProduct:
		table = "products"
	}
	var found int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM `+table+` WHERE id=$1`, item.ID).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUnknownReference, item)
		}
		return err
	}
	return nil
}

// GetWarehouse fetches a warehouse for display purposes.
func (r *Resolver) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, address, created_at, updated_at FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, fmt.Errorf("%w: warehouse %d", ErrUnknownReference, id)
		}
		return Warehouse{}, err
	}
	return w, nil
}
