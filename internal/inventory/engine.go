package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetQuantity(ctx context.Context, warehouseID int64, item ItemRef) (decimal.Decimal, error)
	ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
	CountLedger(ctx context.Context, filter LedgerFilter) (int, error)
	Summarize(ctx context.Context, from, to time.Time, kind ItemKind) ([]MovementTotal, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MovementRecorder receives a tick per committed movement, used for metrics.
type MovementRecorder interface {
	ObserveMovement(direction, docType string)
}

// Engine is the sole entry point for changing stock. It guarantees that the
// inventory line update and its ledger entry commit together or not at all,
// and that the non-negative invariant holds after every committed movement.
type Engine struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MovementRecorder
}

// NewEngine builds the movement engine.
func NewEngine(repo RepositoryPort, audit AuditPort, metrics MovementRecorder) *Engine {
	return &Engine{repo: repo, audit: audit, metrics: metrics}
}

// Quantity reports current on-hand stock without taking any lock. Absence of a
// line reads as zero.
func (e *Engine) Quantity(ctx context.Context, warehouseID int64, item ItemRef) (decimal.Decimal, error) {
	if warehouseID == 0 {
		return decimal.Zero, errors.New("inventory: warehouse required")
	}
	if err := item.Validate(); err != nil {
		return decimal.Zero, err
	}
	return e.repo.GetQuantity(ctx, warehouseID, item)
}

// ApplyMovement validates and applies a single movement atomically, returning
// the created ledger entry.
func (e *Engine) ApplyMovement(ctx context.Context, req MovementRequest) (LedgerEntry, error) {
	entries, err := e.ApplyMovements(ctx, []MovementRequest{req})
	if err != nil {
		return LedgerEntry{}, err
	}
	return entries[0], nil
}

// ApplyMovements applies every request in the order given within one
// all-or-nothing transaction. A failure on any request rolls back the whole
// batch, so multi-line documents succeed or fail together. Within the batch,
// each line's effect is visible to subsequent lines on the same item.
func (e *Engine) ApplyMovements(ctx context.Context, reqs []MovementRequest) ([]LedgerEntry, error) {
	if len(reqs) == 0 {
		return nil, errors.New("inventory: at least one movement required")
	}
	for _, req := range reqs {
		if err := validateRequest(req); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	entries := make([]LedgerEntry, 0, len(reqs))
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, req := range reqs {
			delta := req.Quantity
			if req.Direction == DirectionOut {
				delta = delta.Neg()
			}
			if _, err := applyDelta(ctx, tx, req.WarehouseID, req.Item, delta, now); err != nil {
				return err
			}
			entry := LedgerEntry{
				WarehouseID: req.WarehouseID,
				Item:        req.Item,
				Direction:   req.Direction,
				Quantity:    req.Quantity,
				DocType:     req.DocType,
				DocID:       req.DocID,
				PostedAt:    now,
			}
			id, err := tx.InsertLedgerEntry(ctx, entry)
			if err != nil {
				return err
			}
			entry.ID = id
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if e.metrics != nil {
			e.metrics.ObserveMovement(string(entry.Direction), string(entry.DocType))
		}
	}
	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			Action:   "inventory:movement",
			Entity:   "ledger_entry",
			EntityID: fmt.Sprintf("%s:%s", entries[0].DocType, entries[0].DocID),
			Meta: map[string]any{
				"movements": len(entries),
			},
		})
	}
	return entries, nil
}

// ListLedger exposes the append-only history for inspection.
func (e *Engine) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	return e.repo.ListLedger(ctx, filter)
}

// CountLedger reports how many entries match the filter.
func (e *Engine) CountLedger(ctx context.Context, filter LedgerFilter) (int, error) {
	return e.repo.CountLedger(ctx, filter)
}

// applyDelta is the single choke point mutating an inventory line. It reads the
// line under a row lock (creating it at zero if absent), adds the signed delta
// and rejects the whole mutation if the result would be negative.
func applyDelta(ctx context.Context, tx TxRepository, warehouseID int64, item ItemRef, delta decimal.Decimal, now time.Time) (InventoryLine, error) {
	line, err := tx.GetLineForUpdate(ctx, warehouseID, item)
	if err != nil && !errors.Is(err, ErrLineNotFound) {
		return InventoryLine{}, err
	}
	newQty := line.Quantity.Add(delta)
	if newQty.IsNegative() {
		return InventoryLine{}, fmt.Errorf("%w: %s in warehouse %d has %s, requested %s",
			ErrInsufficientStock, item, warehouseID, line.Quantity, delta.Abs())
	}
	line.WarehouseID = warehouseID
	line.Item = item
	line.Quantity = newQty
	line.UpdatedAt = now
	if err := tx.UpsertLine(ctx, line); err != nil {
		return InventoryLine{}, err
	}
	return line, nil
}

func validateRequest(req MovementRequest) error {
	if req.WarehouseID == 0 {
		return errors.New("inventory: warehouse required")
	}
	if err := req.Item.Validate(); err != nil {
		return err
	}
	if !req.Direction.IsValid() {
		return fmt.Errorf("inventory: unknown direction %q", req.Direction)
	}
	if !req.DocType.IsValid() {
		return fmt.Errorf("inventory: unknown document type %q", req.DocType)
	}
	if req.DocID == uuid.Nil {
		return errors.New("inventory: document reference required")
	}
	if req.Quantity.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
