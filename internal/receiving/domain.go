package receiving

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// ReceiptNoteStatus tracks the note lifecycle.
type ReceiptNoteStatus string

const (
	ReceiptStatusDraft     ReceiptNoteStatus = "DRAFT"
	ReceiptStatusPosted    ReceiptNoteStatus = "POSTED"
	ReceiptStatusCancelled ReceiptNoteStatus = "CANCELLED"
)

// ReceiptNote models an incoming goods-receipt document. Posting it turns each
// line into an IN movement against the ledger.
type ReceiptNote struct {
	ID          int64
	Number      string
	WarehouseID int64
	SupplierID  int64
	Status      ReceiptNoteStatus
	DocRef      uuid.UUID
	ReceivedAt  time.Time
	Note        string
	CreatedBy   int64
	CreatedAt   time.Time
}

// ReceiptLine is one received item. LedgerEntryID links back to the movement
// the line produced once the note is posted.
type ReceiptLine struct {
	ID            int64
	NoteID        int64
	Item          inventory.ItemRef
	Quantity      decimal.Decimal
	LedgerEntryID int64
}

// CreateInput describes a new draft note.
type CreateInput struct {
	Number      string
	WarehouseID int64
	SupplierID  int64
	ReceivedAt  time.Time
	Note        string
	ActorID     int64
	Lines       []LineInput
}

// LineInput describes one received item.
type LineInput struct {
	Item     inventory.ItemRef
	Quantity decimal.Decimal
}

// ErrNoteNotFound indicates a missing receipt note.
var ErrNoteNotFound = errors.New("receiving: note not found")

// ErrInvalidState indicates a lifecycle transition that is not allowed.
var ErrInvalidState = errors.New("receiving: invalid note state")

// ErrValidation indicates bad input.
var ErrValidation = errors.New("receiving: validation failed")
