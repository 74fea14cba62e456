package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// SalesOrderStatus tracks order lifecycle.
type SalesOrderStatus string

const (
	SalesOrderStatusOpen      SalesOrderStatus = "OPEN"
	SalesOrderStatusFulfilled SalesOrderStatus = "FULFILLED"
	SalesOrderStatusCancelled SalesOrderStatus = "CANCELLED"
)

// SalesOrder is the header of a customer order whose fulfillment the issue
// workflow tracks. Pricing, quotation and invoicing concerns live elsewhere.
type SalesOrder struct {
	ID         int64
	Number     string
	CustomerID int64
	Status     SalesOrderStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SalesOrderLine carries the ordered and fulfilled quantity per item.
type SalesOrderLine struct {
	ID                int64
	OrderID           int64
	Item              inventory.ItemRef
	QuantityOrdered   decimal.Decimal
	QuantityFulfilled decimal.Decimal
}

// Remaining returns the unfulfilled quantity.
func (l SalesOrderLine) Remaining() decimal.Decimal {
	return l.QuantityOrdered.Sub(l.QuantityFulfilled)
}

// ErrOrderNotFound indicates a missing sales order.
var ErrOrderNotFound = errors.New("orders: sales order not found")

// ErrOverFulfilled indicates an attempt to fulfil more than was ordered.
var ErrOverFulfilled = errors.New("orders: fulfilled quantity exceeds ordered quantity")
