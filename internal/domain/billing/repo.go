package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Service catalog
	CreateService(ctx context.Context, s *ClinicService) error
	GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error)
	GetServiceByName(ctx context.Context, name string) (*ClinicService, error)
	UpdateService(ctx context.Context, s *ClinicService) error
	DeleteService(ctx context.Context, id uuid.UUID) error
	ListServices(ctx context.Context) ([]*ClinicService, error)

	// Transactions
	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Transaction, error)
	SetTransactionStatus(ctx context.Context, id uuid.UUID, status string) error
	ListTransactions(ctx context.Context, from, to time.Time, limit, offset int) ([]*Transaction, int, error)

	// Doctor fees
	AddDoctorFeeEntry(ctx context.Context, e *DoctorFeeEntry) error
	ListDoctorFeeEntries(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*DoctorFeeEntry, error)
	SummarizeDoctorFees(ctx context.Context, from, to time.Time) ([]*DoctorFeeSummary, error)
}
