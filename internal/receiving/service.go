package receiving

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (ReceiptNote, []ReceiptLine, error)
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

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the goods-receipt workflow.
type Service struct {
	repo        RepositoryPort
	engine      MovementEngine
	resolver    ReferenceResolver
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs receiving service.
func NewService(repo RepositoryPort, engine MovementEngine, resolver ReferenceResolver, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, engine: engine, resolver: resolver, audit: audit, idempotency: idem}
}

// Create persists a draft receipt note with its lines.
func (s *Service) Create(ctx context.Context, input CreateInput) (ReceiptNote, error) {
	if len(input.Lines) == 0 {
		return ReceiptNote{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	for _, line := range input.Lines {
		if err := line.Item.Validate(); err != nil {
			return ReceiptNote{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if line.Quantity.Sign() <= 0 {
			return ReceiptNote{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
	}
	if input.Number == "" {
		input.Number = generateNumber("RCV")
	}
	note := ReceiptNote{
		Number:      input.Number,
		WarehouseID: input.WarehouseID,
		SupplierID:  input.SupplierID,
		Status:      ReceiptStatusDraft,
		DocRef:      uuid.New(),
		ReceivedAt:  defaultTime(input.ReceivedAt),
		Note:        input.Note,
		CreatedBy:   input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		noteID, err := tx.CreateNote(ctx, note)
		if err != nil {
			return err
		}
		note.ID = noteID
		for _, line := range input.Lines {
			if _, err := tx.InsertLine(ctx, ReceiptLine{NoteID: noteID, Item: line.Item, Quantity: line.Quantity}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReceiptNote{}, err
	}
	s.recordAudit(ctx, "RECEIPT_CREATE", note.ID, map[string]any{"number": note.Number})
	return note, nil
}

// Post applies the note to inventory. The flow is two-phase: every reference
// is resolved first, then all lines go to the engine as one all-or-nothing
// batch, then the note and its ledger links are persisted. An idempotency key
// on the note number keeps a replayed post from double-counting stock.
func (s *Service) Post(ctx context.Context, noteID int64) error {
	note, lines, err := s.repo.Get(ctx, noteID)
	if err != nil {
		return err
	}
	if note.Status != ReceiptStatusDraft {
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
			Direction:   inventory.DirectionIn,
			Quantity:    line.Quantity,
			DocType:     inventory.DocTypeGoodsReceipt,
			DocID:       note.DocRef,
		})
	}

	key := fmt.Sprintf("RCV:%s", note.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "receiving"); err != nil {
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
		if err := tx.UpdateStatus(ctx, noteID, ReceiptStatusPosted); err != nil {
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
	s.recordAudit(ctx, "RECEIPT_POST", noteID, map[string]any{"number": note.Number, "lines": len(lines)})
	return nil
}

// Cancel marks a draft note cancelled. Posted notes are immutable.
func (s *Service) Cancel(ctx context.Context, noteID int64) error {
	note, _, err := s.repo.Get(ctx, noteID)
	if err != nil {
		return err
	}
	if note.Status != ReceiptStatusDraft {
		return ErrInvalidState
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, noteID, ReceiptStatusCancelled)
	})
}

// Get loads a note with lines.
func (s *Service) Get(ctx context.Context, noteID int64) (ReceiptNote, []ReceiptLine, error) {
	return s.repo.Get(ctx, noteID)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "receipt_note", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
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
