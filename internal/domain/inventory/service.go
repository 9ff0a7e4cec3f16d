package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(m *Medicine) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if m.Cost != nil && *m.Cost < 0 {
		return fmt.Errorf("cost cannot be negative")
	}
	if m.Stock < 0 {
		return fmt.Errorf("stock cannot be negative")
	}
	if strings.TrimSpace(m.Unit) == "" {
		return fmt.Errorf("unit is required")
	}
	if m.MinStock != nil && *m.MinStock < 0 {
		return fmt.Errorf("min_stock cannot be negative")
	}
	return nil
}

func (s *Service) CreateMedicine(ctx context.Context, m *Medicine) error {
	if err := s.validate(m); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}
	// Opening balance goes on the ledger so the movement history accounts
	// for every unit ever held.
	if m.Stock > 0 {
		return s.repo.AddMovement(ctx, &StockMovement{
			MedicineID: m.ID,
			Direction:  DirectionIn,
			Quantity:   m.Stock,
			Reason:     "opening balance",
		})
	}
	return nil
}

func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateMedicine edits catalog fields. Stock is deliberately not part of
// an update; it only changes through Deduct and Adjust so the ledger
// stays complete.
func (s *Service) UpdateMedicine(ctx context.Context, m *Medicine) error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("medicine id is required")
	}
	if err := s.validate(m); err != nil {
		return err
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) DeleteMedicine(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListMedicines(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) SearchMedicines(ctx context.Context, query string, limit, offset int) ([]*Medicine, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.Search(ctx, query, limit, offset)
}

// Deduct removes dispensed stock. Stock floors at zero: dispensing more
// than is on hand deducts what is there and reports the shortfall so the
// pharmacy can reconcile, rather than failing the consultation.
func (s *Service) Deduct(ctx context.Context, id uuid.UUID, qty int, refID *uuid.UUID) (shortfall int, err error) {
	if qty <= 0 {
		return 0, fmt.Errorf("quantity must be positive")
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("medicine not found: %w", err)
	}

	deducted := qty
	if deducted > m.Stock {
		shortfall = qty - m.Stock
		deducted = m.Stock
	}
	if deducted == 0 {
		return shortfall, nil
	}

	if err := s.repo.SetStock(ctx, id, m.Stock-deducted); err != nil {
		return 0, err
	}
	if err := s.repo.AddMovement(ctx, &StockMovement{
		MedicineID: id,
		Direction:  DirectionOut,
		Quantity:   deducted,
		Reason:     "dispense",
		RefID:      refID,
	}); err != nil {
		return 0, err
	}
	return shortfall, nil
}

// Adjust records a manual stock correction or goods receipt. Like Deduct,
// an OUT adjustment larger than the on-hand stock floors the level at zero;
// the movement records the quantity actually removed.
func (s *Service) Adjust(ctx context.Context, id uuid.UUID, direction string, qty int, reason string) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if direction != DirectionIn && direction != DirectionOut {
		return fmt.Errorf("direction must be IN or OUT")
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("reason is required")
	}

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("medicine not found: %w", err)
	}

	newStock := m.Stock
	moved := qty
	if direction == DirectionIn {
		newStock += qty
	} else {
		if moved > m.Stock {
			moved = m.Stock
		}
		newStock = m.Stock - moved
	}
	if moved == 0 {
		return nil
	}

	if err := s.repo.SetStock(ctx, id, newStock); err != nil {
		return err
	}
	return s.repo.AddMovement(ctx, &StockMovement{
		MedicineID: id,
		Direction:  direction,
		Quantity:   moved,
		Reason:     reason,
	})
}

func (s *Service) ListLowStock(ctx context.Context) ([]*Medicine, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) StockValue(ctx context.Context) (float64, error) {
	return s.repo.StockValue(ctx)
}

func (s *Service) ListMovements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	return s.repo.ListMovements(ctx, medicineID, limit, offset)
}
