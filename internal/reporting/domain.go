package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// StockSummaryRow is the movement summary for one item over the window.
// Beginning is derived, not stored: with a complete ledger back to data
// start, beginning = ending - incoming + outgoing.
type StockSummaryRow struct {
	Item      inventory.ItemRef `json:"item"`
	Beginning decimal.Decimal   `json:"beginning"`
	Incoming  decimal.Decimal   `json:"incoming"`
	Outgoing  decimal.Decimal   `json:"outgoing"`
	Ending    decimal.Decimal   `json:"ending"`
}

// StockSummary is a point-in-time report. It reads committed state only and
// may trail in-flight movements.
type StockSummary struct {
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Kind        inventory.ItemKind `json:"kind,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Rows        []StockSummaryRow  `json:"rows"`
}
