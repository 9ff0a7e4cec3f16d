package patient

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
	nextHN   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.nextHN++
	p.HN = fmt.Sprintf("HN-%05d", m.nextHN)
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockRepo) GetByHN(_ context.Context, hn string) (*Patient, error) {
	for _, p := range m.patients {
		if p.HN == hn {
			return p, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) Search(_ context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if strings.Contains(p.Name, query) || strings.Contains(p.HN, query) || strings.Contains(p.Phone, query) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockRepo) TouchLastVisit(_ context.Context, id uuid.UUID, at time.Time) error {
	p, ok := m.patients[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	p.LastVisitAt = &at
	return nil
}

// -- Tests --

func TestCreatePatient(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{Name: "Somsak Jaidee", Gender: "Male", Phone: "081-234-5678"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient failed: %v", err)
	}
	if p.HN == "" {
		t.Error("expected HN to be assigned")
	}
	if p.Allergies == nil {
		t.Error("expected allergies to default to empty slice")
	}
}

func TestCreatePatientValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	card := "12345"
	future := time.Now().Add(24 * time.Hour)
	badBlood := "Z"

	tests := []struct {
		name    string
		patient Patient
	}{
		{"missing name", Patient{Gender: "Male", Phone: "081"}},
		{"missing phone", Patient{Name: "A", Gender: "Male"}},
		{"invalid gender", Patient{Name: "A", Gender: "M", Phone: "081"}},
		{"short id card", Patient{Name: "A", Gender: "Male", Phone: "081", IDCardNumber: &card}},
		{"future dob", Patient{Name: "A", Gender: "Male", Phone: "081", DOB: &future}},
		{"invalid blood type", Patient{Name: "A", Gender: "Male", Phone: "081", BloodType: &badBlood}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.patient
			if err := svc.CreatePatient(context.Background(), &p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCreatePatientAcceptsValidIDCard(t *testing.T) {
	svc := NewService(newMockRepo())
	card := "1234567890123"

	p := &Patient{Name: "A", Gender: "Female", Phone: "081", IDCardNumber: &card}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("expected valid 13-digit card to pass, got %v", err)
	}
}

func TestUpdatePatientRequiresID(t *testing.T) {
	svc := NewService(newMockRepo())

	p := &Patient{Name: "A", Gender: "Male", Phone: "081"}
	if err := svc.UpdatePatient(context.Background(), p); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestSearchPatientsEmptyQueryLists(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	for i := 0; i < 3; i++ {
		p := &Patient{Name: fmt.Sprintf("Patient %d", i), Gender: "Other", Phone: "081"}
		if err := svc.CreatePatient(context.Background(), p); err != nil {
			t.Fatalf("CreatePatient failed: %v", err)
		}
	}

	_, total, err := svc.SearchPatients(context.Background(), "  ", 20, 0)
	if err != nil {
		t.Fatalf("SearchPatients failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 patients, got %d", total)
	}
}

func TestSearchPatientsByHN(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	p := &Patient{Name: "Findable", Gender: "Male", Phone: "081"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient failed: %v", err)
	}

	results, total, err := svc.SearchPatients(context.Background(), p.HN, 20, 0)
	if err != nil {
		t.Fatalf("SearchPatients failed: %v", err)
	}
	if total != 1 || results[0].ID != p.ID {
		t.Errorf("expected to find patient by HN, got %d results", total)
	}
}

func TestTouchLastVisit(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	p := &Patient{Name: "A", Gender: "Male", Phone: "081"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient failed: %v", err)
	}

	at := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	if err := svc.TouchLastVisit(context.Background(), p.ID, at); err != nil {
		t.Fatalf("TouchLastVisit failed: %v", err)
	}

	got, _ := svc.GetPatient(context.Background(), p.ID)
	if got.LastVisitAt == nil || !got.LastVisitAt.Equal(at) {
		t.Errorf("expected last visit %v, got %v", at, got.LastVisitAt)
	}
}

func TestPatientAge(t *testing.T) {
	dob := time.Now().AddDate(-30, 0, -1)
	p := &Patient{DOB: &dob}
	if got := p.Age(); got != 30 {
		t.Errorf("expected age 30, got %d", got)
	}

	noDOB := &Patient{}
	if got := noDOB.Age(); got != 0 {
		t.Errorf("expected age 0 without DOB, got %d", got)
	}
}

func TestPatientHasAllergy(t *testing.T) {
	p := &Patient{Allergies: []string{"Penicillin", "Ibuprofen"}}
	if !p.HasAllergy("penicillin") {
		t.Error("expected case-insensitive allergy match")
	}
	if p.HasAllergy("Paracetamol") {
		t.Error("did not expect match for absent allergy")
	}
}
