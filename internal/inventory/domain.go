package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemKind discriminates what an ItemRef points at.
type ItemKind string

const (
	// ItemKindMaterial refers to a raw material.
	ItemKindMaterial ItemKind = "MATERIAL"
	// ItemKindProduct refers to a finished product.
	ItemKindProduct ItemKind = "PRODUCT"
)

// IsValid reports whether the kind is a known discriminator.
func (k ItemKind) IsValid() bool {
	return k == ItemKindMaterial || k == ItemKindProduct
}

// ItemRef is a discriminated reference to either a material or a product.
// The (Kind, ID) pair is the identity used for balance lookups and row locks.
type ItemRef struct {
	Kind ItemKind
	ID   int64
}

// String renders the composite key, e.g. "MATERIAL:42".
func (r ItemRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Validate checks the reference is well formed. Whether it resolves to a real
// entity is the caller's responsibility (masterdata resolver).
func (r ItemRef) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("inventory: unknown item kind %q", r.Kind)
	}
	if r.ID <= 0 {
		return errors.New("inventory: item id required")
	}
	return nil
}

// Direction indicates whether a movement adds or removes stock.
type Direction string

const (
	// DirectionIn adds stock.
	DirectionIn Direction = "IN"
	// DirectionOut removes stock.
	DirectionOut Direction = "OUT"
)

// IsValid reports whether the direction is known.
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// DocumentType identifies the kind of source document behind a movement.
type DocumentType string

const (
	DocTypeGoodsReceipt          DocumentType = "GOODS_RECEIPT"
	DocTypeGoodsIssue            DocumentType = "GOODS_ISSUE"
	DocTypeProductionConsumption DocumentType = "PRODUCTION_CONSUMPTION"
	DocTypeProductionOutput      DocumentType = "PRODUCTION_OUTPUT"
)

// IsValid reports whether the document type is known.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocTypeGoodsReceipt, DocTypeGoodsIssue, DocTypeProductionConsumption, DocTypeProductionOutput:
		return true
	default:
		return false
	}
}

// InventoryLine is the current on-hand quantity for one (warehouse, item) pair.
// Quantity never goes negative; a line is created on first receipt and kept
// around even at zero.
type InventoryLine struct {
	WarehouseID int64
	Item        ItemRef
	Quantity    decimal.Decimal
	UpdatedAt   time.Time
}

// LedgerEntry is one immutable record of a stock movement. Entries are only
// ever appended; the (DocType, DocID) pair points back at the source document.
type LedgerEntry struct {
	ID          int64
	WarehouseID int64
	Item        ItemRef
	Direction   Direction
	Quantity    decimal.Decimal
	DocType     DocumentType
	DocID       uuid.UUID
	PostedAt    time.Time
}

// SignedQuantity applies the direction's sign.
func (e LedgerEntry) SignedQuantity() decimal.Decimal {
	if e.Direction == DirectionOut {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// MovementRequest describes one movement to apply. Document workflows build
// these from validated line items.
type MovementRequest struct {
	WarehouseID int64
	Item        ItemRef
	Direction   Direction
	Quantity    decimal.Decimal
	DocType     DocumentType
	DocID       uuid.UUID
}

// MovementTotal aggregates ledger quantity per item and direction over a window.
type MovementTotal struct {
	Item      ItemRef
	Direction Direction
	Total     decimal.Decimal
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	WarehouseID int64
	Item        *ItemRef
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// ErrInsufficientStock triggered when an outbound movement would drive the
// on-hand quantity negative. The movement is rejected in full.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
