package issuing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// IssueNoteStatus is the lifecycle state of an issue note.
type IssueNoteStatus string

const (
	IssueStatusDraft     IssueNoteStatus = "DRAFT"
	IssueStatusPosted    IssueNoteStatus = "POSTED"
	IssueStatusCancelled IssueNoteStatus = "CANCELLED"
)

// IssueNote is a goods-issue document. Posting it moves stock out of the
// warehouse and, when the note references a sales order, advances that
// order's fulfilment.
type IssueNote struct {
	ID           int64
	Number       string
	WarehouseID  int64
	CustomerID   int64
	SalesOrderID *int64
	Status       IssueNoteStatus
	DocRef       uuid.UUID
	IssuedAt     time.Time
	Note         string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IssueLine is one item position on a note. LedgerEntryID is set after the
// note is posted.
type IssueLine struct {
	ID            int64
	NoteID        int64
	Item          inventory.ItemRef
	Quantity      decimal.Decimal
	LedgerEntryID int64
}

// CreateInput carries the fields needed to open a draft note.
type CreateInput struct {
	Number       string
	WarehouseID  int64
	CustomerID   int64
	SalesOrderID *int64
	IssuedAt     time.Time
	Note         string
	ActorID      int64
	Lines        []LineInput
}

// LineInput is one requested line on a draft note.
type LineInput struct {
	Item     inventory.ItemRef
	Quantity decimal.Decimal
}

var (
	ErrNoteNotFound = errors.New("issue note not found")
	ErrInvalidState = errors.New("issue note state does not allow this operation")
	ErrValidation   = errors.New("issue note validation failed")
	ErrOrderNotOpen = errors.New("sales order is not open")
)
