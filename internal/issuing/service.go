package issuing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/orders"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (IssueNote, []IssueLine, error)
}

// MovementEngine is the slice of the inventory engine the workflow needs.
type MovementEngine interface {
	ApplyMovements(ctx context.Context, reqs []inventory.MovementRequest) ([]inventory.LedgerEntry, error)
}

// ReferenceResolver validates warehouse and item identifiers before movements
// are built.
type ReferenceResolver interface {
	CheckWarehouse(ctx context.Context, id int64) error
	CheckItem(ctx context.Context, item inventory.ItemRef) error
}

// OrderBook is the slice of the sales-order repository the workflow needs to
// advance fulfilment.
type OrderBook interface {
	Get(ctx context.Context, id int64) (orders.SalesOrder, []orders.SalesOrderLine, error)
	AddFulfilled(ctx context.Context, orderID int64, item inventory.ItemRef, qty decimal.Decimal) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the goods-issue workflow.
type Service struct {
	repo        RepositoryPort
	engine      MovementEngine
	resolver    ReferenceResolver
	orders      OrderBook
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs issuing service.
func NewService(repo RepositoryPort, engine MovementEngine, resolver ReferenceResolver, book OrderBook, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, engine: engine, resolver: resolver, orders: book, audit: audit, idempotency: idem}
}

// Create persists a draft issue note with its lines.
func (s *Service) Create(ctx context.Context, input CreateInput) (IssueNote, error) {
	if len(input.Lines) == 0 {
		return IssueNote{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	for _, line := range input.Lines {
		if err := line.Item.Validate(); err != nil {
			return IssueNote{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if line.Quantity.Sign() <= 0 {
			return IssueNote{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
	}
	if input.Number == "" {
		input.Number = generateNumber("ISS")
	}
	note := IssueNote{
		Number:       input.Number,
		WarehouseID:  input.WarehouseID,
		CustomerID:   input.CustomerID,
		SalesOrderID: input.SalesOrderID,
		Status:       IssueStatusDraft,
		DocRef:       uuid.New(),
		IssuedAt:     defaultTime(input.IssuedAt),
		Note:         input.Note,
		CreatedBy:    input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		noteID, err := tx.CreateNote(ctx, note)
		if err != nil {
			return err
		}
		note.ID = noteID
		for _, line := range input.Lines {
			if _, err := tx.InsertLine(ctx, IssueLine{NoteID: noteID, Item: line.Item, Quantity: line.Quantity}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return IssueNote{}, err
	}
	s.recordAudit(ctx, "ISSUE_CREATE", note.ID, map[string]any{"number": note.Number})
	return note, nil
}

// Post applies the note to inventory. References are resolved first, the
// linked sales order (if any) is checked against the grouped line quantities,
// then every line goes to the engine as one all-or-nothing batch. Fulfilment
// is advanced only after the note itself is persisted as posted.
func (s *Service) Post(ctx context.Context, noteID int64) error {
	note, lines, err := s.repo.Get(ctx, noteID)
	if err != nil {
		return err
	}
	if note.Status != IssueStatusDraft {
		return ErrInvalidState
	}
	if err := s.resolver.CheckWarehouse(ctx, note.WarehouseID); err != nil {
		return err
	}
	reqs := make([]inventory.MovementRequest, 0, len(lines))
	for _, line := range lines {
		if err := s.resolver.CheckItem(ctx, line.Item); err != nil {
			return err
		}
		reqs = append(reqs, inventory.MovementRequest{
			WarehouseID: note.WarehouseID,
			Item:        line.Item,
			Direction:   inventory.DirectionOut,
			Quantity:    line.Quantity,
			DocType:     inventory.DocTypeGoodsIssue,
			DocID:       note.DocRef,
		})
	}

	grouped := groupByItem(lines)
	if note.SalesOrderID != nil {
		if err := s.checkOrder(ctx, *note.SalesOrderID, grouped); err != nil {
			return err
		}
	}

	key := fmt.Sprintf("ISS:%s", note.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "issuing"); err != nil {
			return err
		}
		inserted = true
	}

	entries, err := s.engine.ApplyMovements(ctx, reqs)
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, noteID, IssueStatusPosted); err != nil {
			return err
		}
		for i, line := range lines {
			if err := tx.SetLineLedgerEntry(ctx, line.ID, entries[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Inventory is already applied; the idempotency key stays so a blind
		// re-post cannot double-count. The caller must reconcile ledger state
		// before retrying.
		return err
	}

	if note.SalesOrderID != nil {
		for _, g := range grouped {
			if err := s.orders.AddFulfilled(ctx, *note.SalesOrderID, g.item, g.quantity); err != nil {
				return fmt.Errorf("advance fulfilment for %s: %w", g.item, err)
			}
		}
	}
	s.recordAudit(ctx, "ISSUE_POST", noteID, map[string]any{"number": note.Number, "lines": len(lines)})
	return nil
}

// Cancel marks a draft note cancelled. Posted notes are immutable.
func (s *Service) Cancel(ctx context.Context, noteID int64) error {
	note, _, err := s.repo.Get(ctx, noteID)
	if err != nil {
		return err
	}
	if note.Status != IssueStatusDraft {
		return ErrInvalidState
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, noteID, IssueStatusCancelled)
	})
}

// Get loads a note with lines.
func (s *Service) Get(ctx context.Context, noteID int64) (IssueNote, []IssueLine, error) {
	return s.repo.Get(ctx, noteID)
}

type itemTotal struct {
	item     inventory.ItemRef
	quantity decimal.Decimal
}

// groupByItem sums line quantities per item, keeping first-seen order. A note
// may repeat an item across lines while the order carries one line per item.
func groupByItem(lines []IssueLine) []itemTotal {
	index := make(map[inventory.ItemRef]int, len(lines))
	totals := make([]itemTotal, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.Item]; ok {
			totals[i].quantity = totals[i].quantity.Add(line.Quantity)
			continue
		}
		index[line.Item] = len(totals)
		totals = append(totals, itemTotal{item: line.Item, quantity: line.Quantity})
	}
	return totals
}

// checkOrder verifies the order is open and each grouped quantity fits within
// the remaining quantity on the matching order line. AddFulfilled re-checks
// under a row lock; this pass fails early before stock moves.
func (s *Service) checkOrder(ctx context.Context, orderID int64, grouped []itemTotal) error {
	order, orderLines, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != orders.SalesOrderStatusOpen {
		return ErrOrderNotOpen
	}
	remaining := make(map[inventory.ItemRef]decimal.Decimal, len(orderLines))
	for _, line := range orderLines {
		remaining[line.Item] = line.Remaining()
	}
	for _, g := range grouped {
		rem, ok := remaining[g.item]
		if !ok {
			return fmt.Errorf("%w: %s not on order %s", ErrValidation, g.item, order.Number)
		}
		if g.quantity.GreaterThan(rem) {
			return orders.ErrOverFulfilled
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "issue_note", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now()
	}
	return value
}
