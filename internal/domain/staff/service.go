package staff

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

var validRoles = map[string]bool{
	RoleDoctor:       true,
	RoleNurse:        true,
	RoleAdmin:        true,
	RoleReceptionist: true,
}

var validStatuses = map[string]bool{
	"Active":   true,
	"Inactive": true,
}

func (s *Service) validate(m *Staff) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !validRoles[m.Role] {
		return fmt.Errorf("invalid role: %s", m.Role)
	}
	if strings.TrimSpace(m.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if m.Status == "" {
		m.Status = "Active"
	}
	if !validStatuses[m.Status] {
		return fmt.Errorf("invalid status: %s", m.Status)
	}
	// Doctors must carry a medical license number.
	if m.Role == RoleDoctor && (m.LicenseNumber == nil || strings.TrimSpace(*m.LicenseNumber) == "") {
		return fmt.Errorf("license_number is required for doctors")
	}
	return nil
}

func (s *Service) CreateStaff(ctx context.Context, m *Staff) error {
	if err := s.validate(m); err != nil {
		return err
	}
	return s.repo.Create(ctx, m)
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateStaff(ctx context.Context, m *Staff) error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("staff id is required")
	}
	if err := s.validate(m); err != nil {
		return err
	}
	return s.repo.Update(ctx, m)
}

func (s *Service) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListStaff(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListDoctors returns active doctors, the pool the appointment desk can
// book against.
func (s *Service) ListDoctors(ctx context.Context) ([]*Staff, error) {
	return s.repo.ListByRole(ctx, RoleDoctor, true)
}
