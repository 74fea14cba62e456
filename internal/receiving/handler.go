package receiving

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/masterdata"
	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler wires HTTP endpoints for receipt notes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs receiving handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/post", h.handlePost)
	r.Post("/{id}/cancel", h.handleCancel)
}

type createRequest struct {
	Number      string           `json:"number"`
	WarehouseID int64            `json:"warehouse_id" validate:"required,gt=0"`
	SupplierID  int64            `json:"supplier_id" validate:"required,gt=0"`
	ReceivedAt  *time.Time       `json:"received_at,omitempty"`
	Note        string           `json:"note"`
	Lines       []lineRequest    `json:"lines" validate:"required,min=1,dive"`
}

type lineRequest struct {
	ItemKind string `json:"item_kind" validate:"required,oneof=MATERIAL PRODUCT"`
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity string `json:"quantity" validate:"required"`
}

type noteResponse struct {
	ID          int64          `json:"id"`
	Number      string         `json:"number"`
	WarehouseID int64          `json:"warehouse_id"`
	SupplierID  int64          `json:"supplier_id"`
	Status      string         `json:"status"`
	DocRef      string         `json:"doc_ref"`
	ReceivedAt  time.Time      `json:"received_at"`
	Note        string         `json:"note,omitempty"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

type lineResponse struct {
	ID            int64  `json:"id"`
	ItemKind      string `json:"item_kind"`
	ItemID        int64  `json:"item_id"`
	Quantity      string `json:"quantity"`
	LedgerEntryID int64  `json:"ledger_entry_id,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		Number:      req.Number,
		WarehouseID: req.WarehouseID,
		SupplierID:  req.SupplierID,
		Note:        req.Note,
	}
	if req.ReceivedAt != nil {
		input.ReceivedAt = *req.ReceivedAt
	}
	for _, line := range req.Lines {
		qty, err := decimal.NewFromString(line.Quantity)
		if err != nil || qty.Sign() <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "line quantity must be a positive decimal")
			return
		}
		input.Lines = append(input.Lines, LineInput{
			Item:     inventory.ItemRef{Kind: inventory.ItemKind(line.ItemKind), ID: line.ItemID},
			Quantity: qty,
		})
	}
	note, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create receipt note", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toNoteResponse(note, nil))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	note, lines, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get receipt note", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toNoteResponse(note, lines))
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Post(r.Context(), id); err != nil {
		h.respondError(w, "post receipt note", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(ReceiptStatusPosted)})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.respondError(w, "cancel receipt note", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(ReceiptStatusCancelled)})
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNoteNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, inventory.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, masterdata.ErrUnknownReference):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Reference", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Already Processed", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toNoteResponse(note ReceiptNote, lines []ReceiptLine) noteResponse {
	resp := noteResponse{
		ID:          note.ID,
		Number:      note.Number,
		WarehouseID: note.WarehouseID,
		SupplierID:  note.SupplierID,
		Status:      string(note.Status),
		DocRef:      note.DocRef.String(),
		ReceivedAt:  note.ReceivedAt,
		Note:        note.Note,
	}
	for _, line := range lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:            line.ID,
			ItemKind:      string(line.Item.Kind),
			ItemID:        line.Item.ID,
			Quantity:      line.Quantity.String(),
			LedgerEntryID: line.LedgerEntryID,
		})
	}
	return resp
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
