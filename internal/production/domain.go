package production

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// OrderStatus is the lifecycle state of a production order.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusReleased  OrderStatus = "RELEASED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a production order. Releasing it consumes the component stock,
// completing it credits the finished product. Both phases post against the
// same document reference with distinct movement types.
type Order struct {
	ID                  int64
	Number              string
	WarehouseID         int64
	ProductID           int64
	Quantity            decimal.Decimal
	Status              OrderStatus
	DocRef              uuid.UUID
	OutputLedgerEntryID int64
	Note                string
	CreatedBy           int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Component is one consumed item on an order. Quantities are absolute for the
// whole order, not per produced unit.
type Component struct {
	ID            int64
	OrderID       int64
	Item          inventory.ItemRef
	Quantity      decimal.Decimal
	LedgerEntryID int64
}

// CreateInput carries the fields needed to open a draft order.
type CreateInput struct {
	Number      string
	WarehouseID int64
	ProductID   int64
	Quantity    decimal.Decimal
	Note        string
	ActorID     int64
	Components  []ComponentInput
}

// ComponentInput is one requested component on a draft order.
type ComponentInput struct {
	Item     inventory.ItemRef
	Quantity decimal.Decimal
}

var (
	ErrOrderNotFound = errors.New("production order not found")
	ErrInvalidState  = errors.New("production order state does not allow this operation")
	ErrValidation    = errors.New("production order validation failed")
)
