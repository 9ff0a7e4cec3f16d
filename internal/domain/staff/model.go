package staff

import (
	"time"

	"github.com/google/uuid"
)

// Roles a clinic account can hold.
const (
	RoleDoctor       = "Doctor"
	RoleNurse        = "Nurse"
	RoleAdmin        = "Admin"
	RoleReceptionist = "Receptionist"
)

// Staff maps to the staff table.
type Staff struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Role          string    `db:"role" json:"role"`
	Email         string    `db:"email" json:"email"`
	Phone         string    `db:"phone" json:"phone"`
	Status        string    `db:"status" json:"status"`
	LicenseNumber *string   `db:"license_number" json:"license_number,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the member can be scheduled.
func (s *Staff) IsActive() bool {
	return s.Status == "Active"
}
