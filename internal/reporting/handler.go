package reporting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/platform/httpx"
)

// Handler wires read-only HTTP endpoints for reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs reporting handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock-summary", h.handleStockSummary)
}

type summaryResponse struct {
	From        time.Time            `json:"from"`
	To          time.Time            `json:"to"`
	Kind        string               `json:"kind,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
	Rows        []summaryRowResponse `json:"rows"`
}

type summaryRowResponse struct {
	ItemKind  string `json:"item_kind"`
	ItemID    int64  `json:"item_id"`
	Beginning string `json:"beginning"`
	Incoming  string `json:"incoming"`
	Outgoing  string `json:"outgoing"`
	Ending    string `json:"ending"`
}

func (h *Handler) handleStockSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, ok := parseDate(q.Get("from"), false)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return
	}
	to, ok := parseDate(q.Get("to"), true)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return
	}
	kind := inventory.ItemKind(q.Get("kind"))
	if kind != "" && !kind.IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "kind must be MATERIAL or PRODUCT")
		return
	}

	summary, err := h.service.StockSummary(r.Context(), from, to, kind)
	if err != nil {
		h.logger.Error("build stock summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := summaryResponse{
		From:        summary.From,
		To:          summary.To,
		Kind:        string(summary.Kind),
		GeneratedAt: summary.GeneratedAt,
		Rows:        make([]summaryRowResponse, 0, len(summary.Rows)),
	}
	for _, row := range summary.Rows {
		resp.Rows = append(resp.Rows, summaryRowResponse{
			ItemKind:  string(row.Item.Kind),
			ItemID:    row.Item.ID,
			Beginning: row.Beginning.String(),
			Incoming:  row.Incoming.String(),
			Outgoing:  row.Outgoing.String(),
			Ending:    row.Ending.String(),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
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
