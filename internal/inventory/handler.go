package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Handler wires read-only HTTP endpoints for the inventory core. Mutations go
// through the document workflow handlers, never directly through here.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance", h.handleBalance)
	r.Get("/ledger", h.handleLedger)
}

type balanceResponse struct {
	WarehouseID int64  `json:"warehouse_id"`
	ItemKind    string `json:"item_kind"`
	ItemID      int64  `json:"item_id"`
	Quantity    string `json:"quantity"`
}

type ledgerEntryResponse struct {
	ID          int64     `json:"id"`
	WarehouseID int64     `json:"warehouse_id"`
	ItemKind    string    `json:"item_kind"`
	ItemID      int64     `json:"item_id"`
	Direction   string    `json:"direction"`
	Quantity    string    `json:"quantity"`
	DocType     string    `json:"doc_type"`
	DocID       string    `json:"doc_id"`
	PostedAt    time.Time `json:"posted_at"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouseID, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id is required")
		return
	}
	item, ok := parseItemRef(q.Get("item_kind"), q.Get("item_id"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_kind and item_id are required")
		return
	}
	qty, err := h.engine.Quantity(r.Context(), warehouseID, item)
	if err != nil {
		h.logger.Error("balance lookup", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		WarehouseID: warehouseID,
		ItemKind:    string(item.Kind),
		ItemID:      item.ID,
		Quantity:    qty.String(),
	})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := LedgerFilter{}
	if s := q.Get("warehouse_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id is invalid")
			return
		}
		filter.WarehouseID = id
	}
	if kind := q.Get("item_kind"); kind != "" {
		item, ok := parseItemRef(kind, q.Get("item_id"))
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_kind and item_id must be given together")
			return
		}
		filter.Item = &item
	}
	var ok bool
	if filter.From, ok = parseDate(q.Get("from"), false); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from date is invalid")
		return
	}
	if filter.To, ok = parseDate(q.Get("to"), true); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to date is invalid")
		return
	}
	page := 1
	if s := q.Get("page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			page = n
		}
	}
	perPage := 50
	if s := q.Get("per_page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			perPage = n
		}
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	total, err := h.engine.CountLedger(r.Context(), filter)
	if err != nil {
		h.logger.Error("ledger count", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.engine.ListLedger(r.Context(), filter)
	if err != nil {
		h.logger.Error("ledger listing", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	pagination := shared.NewPagination(page, perPage, total)
	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ledgerEntryResponse{
			ID:          e.ID,
			WarehouseID: e.WarehouseID,
			ItemKind:    string(e.Item.Kind),
			ItemID:      e.Item.ID,
			Direction:   string(e.Direction),
			Quantity:    e.Quantity.String(),
			DocType:     string(e.DocType),
			DocID:       e.DocID.String(),
			PostedAt:    e.PostedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out, "pagination": pagination})
}

func parseItemRef(kind, id string) (ItemRef, bool) {
	itemID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ItemRef{}, false
	}
	ref := ItemRef{Kind: ItemKind(kind), ID: itemID}
	if err := ref.Validate(); err != nil {
		return ItemRef{}, false
	}
	return ref, true
}

func parseDate(value string, endOfDay bool) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}
