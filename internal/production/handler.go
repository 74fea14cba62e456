package production

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/masterdata"
	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler wires HTTP endpoints for production orders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs production handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/release", h.handleRelease)
	r.Post("/{id}/complete", h.handleComplete)
	r.Post("/{id}/cancel", h.handleCancel)
}

type createRequest struct {
	Number      string             `json:"number"`
	WarehouseID int64              `json:"warehouse_id" validate:"required,gt=0"`
	ProductID   int64              `json:"product_id" validate:"required,gt=0"`
	Quantity    string             `json:"quantity" validate:"required"`
	Note        string             `json:"note"`
	Components  []componentRequest `json:"components" validate:"required,min=1,dive"`
}

type componentRequest struct {
	ItemKind string `json:"item_kind" validate:"required,oneof=MATERIAL PRODUCT"`
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity string `json:"quantity" validate:"required"`
}

type orderResponse struct {
	ID                  int64               `json:"id"`
	Number              string              `json:"number"`
	WarehouseID         int64               `json:"warehouse_id"`
	ProductID           int64               `json:"product_id"`
	Quantity            string              `json:"quantity"`
	Status              string              `json:"status"`
	DocRef              string              `json:"doc_ref"`
	OutputLedgerEntryID int64               `json:"output_ledger_entry_id,omitempty"`
	Note                string              `json:"note,omitempty"`
	Components          []componentResponse `json:"components,omitempty"`
}

type componentResponse struct {
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
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || qty.Sign() <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity must be a positive decimal")
		return
	}
	input := CreateInput{
		Number:      req.Number,
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Quantity:    qty,
		Note:        req.Note,
	}
	for _, component := range req.Components {
		componentQty, err := decimal.NewFromString(component.Quantity)
		if err != nil || componentQty.Sign() <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "component quantity must be a positive decimal")
			return
		}
		input.Components = append(input.Components, ComponentInput{
			Item:     inventory.ItemRef{Kind: inventory.ItemKind(component.ItemKind), ID: component.ItemID},
			Quantity: componentQty,
		})
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create production order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(order, nil))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	order, components, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get production order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order, components))
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Release(r.Context(), id); err != nil {
		h.respondError(w, "release production order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(OrderStatusReleased)})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Complete(r.Context(), id); err != nil {
		h.respondError(w, "complete production order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(OrderStatusCompleted)})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.respondError(w, "cancel production order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(OrderStatusCancelled)})
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, inventory.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, inventory.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, masterdata.ErrUnknownReference):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Reference", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Already Processed", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toOrderResponse(order Order, components []Component) orderResponse {
	resp := orderResponse{
		ID:                  order.ID,
		Number:              order.Number,
		WarehouseID:         order.WarehouseID,
		ProductID:           order.ProductID,
		Quantity:            order.Quantity.String(),
		Status:              string(order.Status),
		DocRef:              order.DocRef.String(),
		OutputLedgerEntryID: order.OutputLedgerEntryID,
		Note:                order.Note,
	}
	for _, component := range components {
		resp.Components = append(resp.Components, componentResponse{
			ID:            component.ID,
			ItemKind:      string(component.Item.Kind),
			ItemID:        component.Item.ID,
			Quantity:      component.Quantity.String(),
			LedgerEntryID: component.LedgerEntryID,
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
