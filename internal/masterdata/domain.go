package masterdata

import (
	"errors"
	"time"
)

// Warehouse represents a warehouse entity.
type Warehouse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Material represents a raw material catalog entry.
type Material struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// Product represents a finished product catalog entry.
type Product struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// ErrUnknownReference indicates an identifier that does not resolve to a real
// warehouse, material or product. Document workflows raise it before calling
// the movement engine; it aborts the whole document.
var ErrUnknownReference = errors.New("masterdata: unknown reference")
