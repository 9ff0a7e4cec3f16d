package inventory

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMinStock is the reorder point used when a medicine has none set.
const DefaultMinStock = 10

// Medicine maps to the medicine table. Stock is the on-hand quantity in
// the medicine's dispensing unit and never goes negative.
type Medicine struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Price       float64    `db:"price" json:"price"`
	Cost        *float64   `db:"cost" json:"cost,omitempty"`
	Stock       int        `db:"stock" json:"stock"`
	Unit        string     `db:"unit" json:"unit"`
	MinStock    *int       `db:"min_stock" json:"min_stock,omitempty"`
	Category    *string    `db:"category" json:"category,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ReorderPoint returns the configured reorder point or the default.
func (m *Medicine) ReorderPoint() int {
	if m.MinStock != nil && *m.MinStock > 0 {
		return *m.MinStock
	}
	return DefaultMinStock
}

// IsLowStock reports whether on-hand stock has reached the reorder point.
func (m *Medicine) IsLowStock() bool {
	return m.Stock <= m.ReorderPoint()
}

// IsExpired reports whether the medicine is past its expiry date.
func (m *Medicine) IsExpired(now time.Time) bool {
	return m.ExpiryDate != nil && m.ExpiryDate.Before(now)
}

// Movement directions.
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// StockMovement is one ledger entry. Quantity is always positive; the
// direction carries the sign.
type StockMovement struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	MedicineID uuid.UUID  `db:"medicine_id" json:"medicine_id"`
	Direction  string     `db:"direction" json:"direction"`
	Quantity   int        `db:"quantity" json:"quantity"`
	Reason     string     `db:"reason" json:"reason"`
	RefID      *uuid.UUID `db:"ref_id" json:"ref_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
