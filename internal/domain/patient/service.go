package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var validGenders = map[string]bool{
	"Male":   true,
	"Female": true,
	"Other":  true,
}

var validBloodTypes = map[string]bool{
	"A":  true,
	"B":  true,
	"AB": true,
	"O":  true,
}

func (s *Service) validate(p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	if p.BloodType != nil && !validBloodTypes[*p.BloodType] {
		return fmt.Errorf("invalid blood type: %s", *p.BloodType)
	}
	if p.IDCardNumber != nil {
		card := strings.TrimSpace(*p.IDCardNumber)
		if len(card) != 13 || !allDigits(card) {
			return fmt.Errorf("id_card_number must be 13 digits")
		}
		p.IDCardNumber = &card
	}
	if p.DOB != nil && p.DOB.After(time.Now()) {
		return fmt.Errorf("dob cannot be in the future")
	}
	if p.Allergies == nil {
		p.Allergies = []string{}
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetPatientByHN(ctx context.Context, hn string) (*Patient, error) {
	return s.repo.GetByHN(ctx, hn)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("patient id is required")
	}
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// SearchPatients matches the query against HN, name, phone and ID card
// number. An empty query falls back to a plain listing.
func (s *Service) SearchPatients(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.List(ctx, limit, offset)
	}
	return s.repo.Search(ctx, query, limit, offset)
}

// TouchLastVisit stamps the patient's last visit time.
func (s *Service) TouchLastVisit(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.repo.TouchLastVisit(ctx, id, at)
}
