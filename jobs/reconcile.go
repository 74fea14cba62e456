package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/meridian-wms/meridian-wms/internal/jobs"
)

// Mismatch is one inventory line whose stored quantity disagrees with the
// signed sum of its ledger entries.
type Mismatch struct {
	WarehouseID int64
	ItemKind    string
	ItemID      int64
	StoredQty   decimal.Decimal
	LedgerQty   decimal.Decimal
}

// Reconciler cross-checks inventory lines against the ledger. Drift means a
// bug or manual database edit; the engine itself commits both sides together.
type Reconciler struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewReconciler constructs Reconciler. A nil metrics skips instrumentation.
func NewReconciler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *Reconciler {
	return &Reconciler{pool: pool, logger: logger, metrics: metrics}
}

// Run returns every line whose quantity differs from its ledger balance.
func (r *Reconciler) Run(ctx context.Context) ([]Mismatch, error) {
	rows, err := r.pool.Query(ctx, `SELECT warehouse_id, item_kind, item_id,
       COALESCE(s.qty, 0) AS stored_qty,
       COALESCE(l.total, 0) AS ledger_qty
FROM (SELECT warehouse_id, item_kind, item_id,
             SUM(CASE WHEN direction='IN' THEN qty ELSE -qty END) AS total
      FROM ledger_entries
      GROUP BY warehouse_id, item_kind, item_id) l
FULL OUTER JOIN inventory_lines s USING (warehouse_id, item_kind, item_id)
WHERE COALESCE(s.qty, 0) <> COALESCE(l.total, 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var mismatches []Mismatch
	for rows.Next() {
		var m Mismatch
		if err := rows.Scan(&m.WarehouseID, &m.ItemKind, &m.ItemID, &m.StoredQty, &m.LedgerQty); err != nil {
			return nil, err
		}
		mismatches = append(mismatches, m)
	}
	return mismatches, rows.Err()
}

// HandlerFunc adapts the reconciler to an Asynq handler.
func (r *Reconciler) HandlerFunc() asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := r.metrics.Track("ledger_reconcile")
		mismatches, err := r.Run(ctx)
		if err != nil {
			r.logger.Error("ledger reconciliation failed", slog.Any("error", err))
			return tracker.End(err)
		}
		r.metrics.AddDrift(len(mismatches))
		if len(mismatches) == 0 {
			r.logger.Info("ledger reconciliation clean")
			return tracker.End(nil)
		}
		for _, m := range mismatches {
			r.logger.Warn("ledger drift detected",
				slog.Int64("warehouse_id", m.WarehouseID),
				slog.String("item_kind", m.ItemKind),
				slog.Int64("item_id", m.ItemID),
				slog.String("stored_qty", m.StoredQty.String()),
				slog.String("ledger_qty", m.LedgerQty.String()))
		}
		return tracker.End(nil)
	}
}
