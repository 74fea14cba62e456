package production

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
	Get(ctx context.Context, id int64) (Order, []Component, error)
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

// Service orchestrates the production workflow.
type Service struct {
	repo        RepositoryPort
	engine      MovementEngine
	resolver    ReferenceResolver
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs production service.
func NewService(repo RepositoryPort, engine MovementEngine, resolver ReferenceResolver, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, engine: engine, resolver: resolver, audit: audit, idempotency: idem}
}

// Create persists a draft production order with its component lines.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, error) {
	if input.ProductID <= 0 {
		return Order{}, fmt.Errorf("%w: product id required", ErrValidation)
	}
	if input.Quantity.Sign() <= 0 {
		return Order{}, fmt.Errorf("%w: planned quantity must be positive", ErrValidation)
	}
	if len(input.Components) == 0 {
		return Order{}, fmt.Errorf("%w: at least one component required", ErrValidation)
	}
	for _, component := range input.Components {
		if err := component.Item.Validate(); err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if component.Quantity.Sign() <= 0 {
			return Order{}, fmt.Errorf("%w: component quantity must be positive", ErrValidation)
		}
	}
	if input.Number == "" {
		input.Number = generateNumber("PRD")
	}
	order := Order{
		Number:      input.Number,
		WarehouseID: input.WarehouseID,
		ProductID:   input.ProductID,
		Quantity:    input.Quantity,
		Status:      OrderStatusDraft,
		DocRef:      uuid.New(),
		Note:        input.Note,
		CreatedBy:   input.ActorID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for _, component := range input.Components {
			if _, err := tx.InsertComponent(ctx, Component{OrderID: orderID, Item: component.Item, Quantity: component.Quantity}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, "PRODUCTION_CREATE", order.ID, map[string]any{"number": order.Number})
	return order, nil
}

// Release consumes the order's components from stock. All components go to
// the engine as one all-or-nothing batch, so a missing component leaves every
// other balance untouched and the order in draft.
func (s *Service) Release(ctx context.Context, orderID int64) error {
	order, components, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusDraft {
		return ErrInvalidState
	}
	if err := s.resolver.CheckWarehouse(ctx, order.WarehouseID); err != nil {
		return err
	}
	productRef := inventory.ItemRef{Kind: inventory.ItemKindProduct, ID: order.ProductID}
	if err := s.resolver.CheckItem(ctx, productRef); err != nil {
		return err
	}
	reqs := make([]inventory.MovementRequest, 0, len(components))
	for _, component := range components {
		if err := s.resolver.CheckItem(ctx, component.Item); err != nil {
			return err
		}
		reqs = append(reqs, inventory.MovementRequest{
			WarehouseID: order.WarehouseID,
			Item:        component.Item,
			Direction:   inventory.DirectionOut,
			Quantity:    component.Quantity,
			DocType:     inventory.DocTypeProductionConsumption,
			DocID:       order.DocRef,
		})
	}

	key := fmt.Sprintf("PRD-REL:%s", order.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "production"); err != nil {
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
		if err := tx.UpdateStatus(ctx, orderID, OrderStatusReleased); err != nil {
			return err
		}
		for i, component := range components {
			if err := tx.SetComponentLedgerEntry(ctx, component.ID, entries[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Components are already consumed; the idempotency key stays so a
		// blind re-release cannot consume them twice.
		return err
	}
	s.recordAudit(ctx, "PRODUCTION_RELEASE", orderID, map[string]any{"number": order.Number, "components": len(components)})
	return nil
}

// Complete credits the finished product to stock and closes the order.
func (s *Service) Complete(ctx context.Context, orderID int64) error {
	order, _, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusReleased {
		return ErrInvalidState
	}

	key := fmt.Sprintf("PRD-CMP:%s", order.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "production"); err != nil {
			return err
		}
		inserted = true
	}

	entries, err := s.engine.ApplyMovements(ctx, []inventory.MovementRequest{{
		WarehouseID: order.WarehouseID,
		Item:        inventory.ItemRef{Kind: inventory.ItemKindProduct, ID: order.ProductID},
		Direction:   inventory.DirectionIn,
		Quantity:    order.Quantity,
		DocType:     inventory.DocTypeProductionOutput,
		DocID:       order.DocRef,
	}})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, orderID, OrderStatusCompleted); err != nil {
			return err
		}
		return tx.SetOutputLedgerEntry(ctx, orderID, entries[0].ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PRODUCTION_COMPLETE", orderID, map[string]any{"number": order.Number})
	return nil
}

// Cancel marks a draft order cancelled. Released and completed orders are
// immutable because their movements are already on the ledger.
func (s *Service) Cancel(ctx context.Context, orderID int64) error {
	order, _, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderStatusDraft {
		return ErrInvalidState
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, orderID, OrderStatusCancelled)
	})
}

// Get loads an order with components.
func (s *Service) Get(ctx context.Context, orderID int64) (Order, []Component, error) {
	return s.repo.Get(ctx, orderID)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "production_order", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
