package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Medicine, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*Medicine, int, error)

	// SetStock writes the new on-hand quantity.
	SetStock(ctx context.Context, id uuid.UUID, stock int) error

	// ListLowStock returns medicines at or below their reorder point.
	ListLowStock(ctx context.Context) ([]*Medicine, error)

	// StockValue returns the total value of stock on hand, at cost where
	// known and at selling price otherwise.
	StockValue(ctx context.Context) (float64, error)

	// AddMovement appends a ledger entry.
	AddMovement(ctx context.Context, mv *StockMovement) error
	ListMovements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*StockMovement, int, error)
}
