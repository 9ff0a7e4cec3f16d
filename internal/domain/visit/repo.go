package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Appointments
	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a *Appointment) error
	ListAppointments(ctx context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error)
	ListOpenAppointments(ctx context.Context, date time.Time) ([]*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	CountByStatus(ctx context.Context, date time.Time) (map[string]int, error)

	// Medical records
	CreateRecord(ctx context.Context, r *MedicalRecord) error
	UpdateRecord(ctx context.Context, r *MedicalRecord) error
	GetRecordByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error)
	ListRecordsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
}
