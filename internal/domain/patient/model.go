package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. HN is the human-facing hospital
// number printed on cards and queue slips; it is assigned on registration
// and never reused.
type Patient struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	HN           string     `db:"hn" json:"hn"`
	IDCardNumber *string    `db:"id_card_number" json:"id_card_number,omitempty"`
	Name         string     `db:"name" json:"name"`
	DOB          *time.Time `db:"dob" json:"dob,omitempty"`
	Gender       string     `db:"gender" json:"gender"`
	BloodType    *string    `db:"blood_type" json:"blood_type,omitempty"`
	Phone        string     `db:"phone" json:"phone"`
	Address      *string    `db:"address" json:"address,omitempty"`
	LastVisitAt  *time.Time `db:"last_visit_at" json:"last_visit_at,omitempty"`
	Allergies    []string   `db:"allergies" json:"allergies"`
	History      string     `db:"history" json:"history"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Age returns the patient's age in whole years, or 0 when DOB is unknown.
func (p *Patient) Age() int {
	if p.DOB == nil {
		return 0
	}
	now := time.Now()
	years := now.Year() - p.DOB.Year()
	if now.YearDay() < p.DOB.YearDay() {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// HasAllergy reports whether the named substance is on the allergy list.
// Matching is case-insensitive on the whole entry.
func (p *Patient) HasAllergy(name string) bool {
	for _, a := range p.Allergies {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
