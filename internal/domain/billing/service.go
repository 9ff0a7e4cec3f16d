package billing

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

// -- Service catalog --

func (s *Service) validateService(cs *ClinicService) error {
	if strings.TrimSpace(cs.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if cs.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if cs.DoctorFee != nil && *cs.DoctorFee < 0 {
		return fmt.Errorf("doctor_fee cannot be negative")
	}
	return nil
}

func (s *Service) CreateService(ctx context.Context, cs *ClinicService) error {
	if err := s.validateService(cs); err != nil {
		return err
	}
	return s.repo.CreateService(ctx, cs)
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	return s.repo.GetService(ctx, id)
}

func (s *Service) UpdateService(ctx context.Context, cs *ClinicService) error {
	if cs.ID == uuid.Nil {
		return fmt.Errorf("service id is required")
	}
	if err := s.validateService(cs); err != nil {
		return err
	}
	return s.repo.UpdateService(ctx, cs)
}

func (s *Service) DeleteService(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteService(ctx, id)
}

func (s *Service) ListServices(ctx context.Context) ([]*ClinicService, error) {
	return s.repo.ListServices(ctx)
}

// DoctorFeeService resolves the catalog's consultation charge. A missing
// entry is not an error; the caller falls back to the clinic default.
func (s *Service) DoctorFeeService(ctx context.Context) *ClinicService {
	cs, err := s.repo.GetServiceByName(ctx, doctorFeeDescription)
	if err != nil {
		return nil
	}
	return cs
}

// -- Payments --

var validPaymentMethods = map[string]bool{
	PaymentCash:       true,
	PaymentTransfer:   true,
	PaymentCreditCard: true,
}

// PaymentMeta carries who is paying for what.
type PaymentMeta struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	PatientName   string
	DoctorID      *uuid.UUID
	DoctorName    *string
	Method        string
	CashReceived  float64
}

// RecordPayment commits a draft bill as a paid transaction and returns
// the change due. Cash payments must cover the grand total; electronic
// methods are assumed to settle exactly. When the bill carries doctor
// fees and a doctor is attached, a fee entry is written for the report.
func (s *Service) RecordPayment(ctx context.Context, bill *Bill, meta PaymentMeta) (*Transaction, float64, error) {
	if len(bill.Items) == 0 {
		return nil, 0, fmt.Errorf("bill has no items")
	}
	if !validPaymentMethods[meta.Method] {
		return nil, 0, fmt.Errorf("invalid payment method: %s", meta.Method)
	}
	if meta.AppointmentID == uuid.Nil {
		return nil, 0, fmt.Errorf("appointment_id is required")
	}

	grandTotal := bill.GrandTotal()
	change := 0.0
	if meta.Method == PaymentCash {
		if meta.CashReceived < grandTotal {
			return nil, 0, ErrInsufficientPayment
		}
		change = bill.Change(meta.CashReceived)
	}

	t := &Transaction{
		AppointmentID: meta.AppointmentID,
		PatientID:     meta.PatientID,
		PatientName:   meta.PatientName,
		DoctorID:      meta.DoctorID,
		DoctorName:    meta.DoctorName,
		Items:         bill.Items,
		Subtotal:      bill.Subtotal(),
		Discount:      bill.Discount,
		GrandTotal:    grandTotal,
		PaymentMethod: meta.Method,
		Status:        StatusPaid,
	}
	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return nil, 0, err
	}

	if totalFee := bill.TotalDoctorFee(); totalFee > 0 && meta.DoctorID != nil {
		doctorName := ""
		if meta.DoctorName != nil {
			doctorName = *meta.DoctorName
		}
		entry := &DoctorFeeEntry{
			TransactionID: t.ID,
			DoctorID:      *meta.DoctorID,
			DoctorName:    doctorName,
			PatientName:   meta.PatientName,
			TotalFee:      totalFee,
		}
		if err := s.repo.AddDoctorFeeEntry(ctx, entry); err != nil {
			return nil, 0, err
		}
	}

	return t, change, nil
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) GetTransactionByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransactionByAppointment(ctx, appointmentID)
}

// VoidTransaction marks a paid transaction void. Voided transactions stay
// on the books; the record itself is never rewritten.
func (s *Service) VoidTransaction(ctx context.Context, id uuid.UUID) error {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("transaction not found: %w", err)
	}
	if t.Status == StatusVoid {
		return fmt.Errorf("transaction is already void")
	}
	return s.repo.SetTransactionStatus(ctx, id, StatusVoid)
}

func (s *Service) ListTransactions(ctx context.Context, from, to time.Time, limit, offset int) ([]*Transaction, int, error) {
	return s.repo.ListTransactions(ctx, from, to, limit, offset)
}

// Revenue sums the grand totals of paid transactions in the period.
func (s *Service) Revenue(ctx context.Context, from, to time.Time) (float64, error) {
	var revenue float64
	offset := 0
	const page = 200
	for {
		txs, _, err := s.repo.ListTransactions(ctx, from, to, page, offset)
		if err != nil {
			return 0, err
		}
		for _, t := range txs {
			if t.Status == StatusPaid {
				revenue += t.GrandTotal
			}
		}
		if len(txs) < page {
			return revenue, nil
		}
		offset += page
	}
}

// -- Doctor fee report --

func (s *Service) DoctorFeeReport(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*DoctorFeeEntry, float64, error) {
	entries, err := s.repo.ListDoctorFeeEntries(ctx, doctorID, from, to)
	if err != nil {
		return nil, 0, err
	}
	var total float64
	for _, e := range entries {
		total += e.TotalFee
	}
	return entries, total, nil
}

func (s *Service) SummarizeDoctorFees(ctx context.Context, from, to time.Time) ([]*DoctorFeeSummary, error) {
	return s.repo.SummarizeDoctorFees(ctx, from, to)
}
