package visit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinichq/clinic/internal/domain/billing"
	"github.com/clinichq/clinic/internal/domain/patient"
	"github.com/clinichq/clinic/internal/platform/db"
	"github.com/clinichq/clinic/internal/platform/ws"
)

// StockDeductor dispenses prescriptions from inventory. The returned int
// is the quantity that could not be covered by stock on hand.
type StockDeductor interface {
	Deduct(ctx context.Context, medicineID uuid.UUID, qty int, refID *uuid.UUID) (int, error)
}

// PatientDirectory is the slice of the patient registry the lifecycle
// needs: resolving the patient at booking time and stamping the last
// visit when a consultation completes.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	TouchLastVisit(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Cashier settles bills and resolves the consultation charge.
type Cashier interface {
	DoctorFeeService(ctx context.Context) *billing.ClinicService
	RecordPayment(ctx context.Context, bill *billing.Bill, meta billing.PaymentMeta) (*billing.Transaction, float64, error)
}

// EventPublisher pushes visit events to connected telemed rooms.
type EventPublisher interface {
	Publish(ctx context.Context, event ws.Event) error
}

// Service drives the visit lifecycle. Completion and payment run inside
// a transaction so the record, the stock ledger and the appointment
// always agree.
type Service struct {
	repo     Repository
	txr      db.TxRunner
	stock    StockDeductor
	patients PatientDirectory
	cashier  Cashier
	events   EventPublisher
}

func NewService(repo Repository, txr db.TxRunner, stock StockDeductor, patients PatientDirectory, cashier Cashier) *Service {
	return &Service{
		repo:     repo,
		txr:      txr,
		stock:    stock,
		patients: patients,
		cashier:  cashier,
	}
}

// SetEventPublisher attaches an optional realtime publisher.
func (s *Service) SetEventPublisher(pub EventPublisher) {
	s.events = pub
}

func (s *Service) publish(ctx context.Context, a *Appointment, eventType string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, ws.Event{
		Type:      eventType,
		Room:      a.ID.String(),
		Timestamp: time.Now().UTC(),
	})
}

var validTypes = map[string]bool{
	TypeOnsite:  true,
	TypeTelemed: true,
}

// CreateAppointment books a new visit. Bookings start Pending unless
// the desk confirms on the spot, in which case Confirmed is accepted.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	if strings.TrimSpace(a.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrValidation)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if _, err := time.Parse("15:04", a.StartTime); err != nil {
		return fmt.Errorf("%w: start_time must be HH:MM", ErrValidation)
	}
	if a.Type == "" {
		a.Type = TypeOnsite
	}
	if !validTypes[a.Type] {
		return fmt.Errorf("%w: invalid appointment type %s", ErrValidation, a.Type)
	}

	switch a.Status {
	case "", StatusPending:
		a.Status = StatusPending
	case StatusConfirmed:
	default:
		return fmt.Errorf("%w: new appointments start Pending or Confirmed", ErrValidation)
	}
	// The booking carries only the patient id; the name is denormalized
	// from the registry so an unknown id never reaches the database.
	p, err := s.patients.GetPatient(ctx, a.PatientID)
	if err != nil {
		return fmt.Errorf("%w: patient %s does not resolve", ErrValidation, a.PatientID)
	}
	a.PatientName = p.Name

	a.PaymentStatus = PaymentPending
	if err := s.repo.CreateAppointment(ctx, a); err != nil {
		return err
	}

	// Telemed visits get their room link up front so the booking
	// confirmation can carry it.
	if a.Type == TypeTelemed && a.TelemedLink == nil {
		link := "/ws/telemed?room=" + a.ID.String()
		a.TelemedLink = &link
		if err := s.repo.UpdateAppointment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointment(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListAppointments(ctx, date, limit, offset)
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
}

// ConfirmAppointment moves a Pending booking to Confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment not found: %w", err)
	}
	if !CanTransition(a.Status, StatusConfirmed) {
		return nil, fmt.Errorf("cannot confirm appointment in status %s: %w", a.Status, ErrInvalidTransition)
	}
	a.Status = StatusConfirmed
	if err := s.repo.UpdateAppointment(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, a, "visit.confirmed")
	return a, nil
}

// ScreenInput carries the nurse's intake: measurements, the chief
// complaint, and any assignment made at the screening desk.
type ScreenInput struct {
	Vitals         VitalSigns `json:"vitals"`
	ChiefComplaint string     `json:"chief_complaint"`
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	DoctorName     *string    `json:"doctor_name,omitempty"`
	RoomID         *string    `json:"room_id,omitempty"`
}

// Screen moves a Confirmed visit to Waiting and opens the draft medical
// record with the intake data, queueing the patient for the doctor. The
// draft and the status change commit together.
func (s *Service) Screen(ctx context.Context, id uuid.UUID, input ScreenInput) (*Appointment, error) {
	if input.Vitals.Systolic <= 0 || input.Vitals.Diastolic <= 0 {
		return nil, fmt.Errorf("%w: blood pressure readings are required", ErrValidation)
	}
	if input.Vitals.HeartRate <= 0 {
		return nil, fmt.Errorf("%w: heart rate is required", ErrValidation)
	}
	if strings.TrimSpace(input.ChiefComplaint) == "" {
		return nil, fmt.Errorf("%w: chief_complaint is required", ErrValidation)
	}

	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment not found: %w", err)
	}
	if !CanTransition(a.Status, StatusWaiting) {
		return nil, fmt.Errorf("cannot screen appointment in status %s: %w", a.Status, ErrInvalidTransition)
	}

	if input.DoctorID != nil {
		a.DoctorID = input.DoctorID
		a.DoctorName = input.DoctorName
	}
	if input.RoomID != nil {
		a.RoomID = input.RoomID
	}
	a.Status = StatusWaiting

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if existing, err := s.repo.GetRecordByAppointment(ctx, a.ID); err == nil {
			existing.ChiefComplaint = input.ChiefComplaint
			existing.Vitals = input.Vitals
			if err := s.repo.UpdateRecord(ctx, existing); err != nil {
				return fmt.Errorf("update draft record: %w", err)
			}
		} else {
			draft := &MedicalRecord{
				AppointmentID:  a.ID,
				PatientID:      a.PatientID,
				ChiefComplaint: input.ChiefComplaint,
				Vitals:         input.Vitals,
				Prescriptions:  []PrescriptionItem{},
			}
			if err := s.repo.CreateRecord(ctx, draft); err != nil {
				return fmt.Errorf("create draft record: %w", err)
			}
		}
		return s.repo.UpdateAppointment(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, a, "visit.screened")
	return a, nil
}

// ConsultationInput is the doctor's output for a visit.
type ConsultationInput struct {
	DoctorID       uuid.UUID          `json:"doctor_id"`
	DoctorName     string             `json:"doctor_name"`
	ChiefComplaint string             `json:"chief_complaint"`
	Vitals         *VitalSigns        `json:"vitals,omitempty"`
	SOAP           SOAPNote           `json:"soap"`
	Diagnosis      string             `json:"diagnosis"`
	Prescriptions  []PrescriptionItem `json:"prescriptions"`
}

// CompleteConsultation fills in the medical record, dispenses the
// prescriptions and closes the visit, atomically. A screening draft is
// updated in place; a walk-in gets a fresh record. Stock shortfalls do
// not fail the consultation; they are reported for the pharmacy to
// reconcile.
func (s *Service) CompleteConsultation(ctx context.Context, id uuid.UUID, input ConsultationInput) (*MedicalRecord, []StockShortfall, error) {
	if input.DoctorID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}
	if strings.TrimSpace(input.Diagnosis) == "" {
		return nil, nil, fmt.Errorf("%w: diagnosis is required", ErrValidation)
	}
	for _, rx := range input.Prescriptions {
		if rx.MedicineID == uuid.Nil || rx.Amount <= 0 {
			return nil, nil, fmt.Errorf("%w: prescription needs a medicine and a positive amount", ErrValidation)
		}
	}

	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("appointment not found: %w", err)
	}
	if !CanTransition(a.Status, StatusCompleted) {
		return nil, nil, fmt.Errorf("cannot complete appointment in status %s: %w", a.Status, ErrInvalidTransition)
	}

	// Reuse the screening draft when one exists; the record is never
	// duplicated for the same appointment.
	record, getErr := s.repo.GetRecordByAppointment(ctx, a.ID)
	fresh := getErr != nil
	if fresh {
		record = &MedicalRecord{
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
		}
	}
	if input.ChiefComplaint != "" {
		record.ChiefComplaint = input.ChiefComplaint
	}
	if strings.TrimSpace(record.ChiefComplaint) == "" {
		return nil, nil, fmt.Errorf("%w: chief_complaint is required", ErrValidation)
	}
	if input.Vitals != nil {
		record.Vitals = *input.Vitals
	}
	record.DoctorID = &input.DoctorID
	record.SOAP = input.SOAP
	record.Diagnosis = input.Diagnosis
	if input.Prescriptions == nil {
		input.Prescriptions = []PrescriptionItem{}
	}
	record.Prescriptions = input.Prescriptions

	record.TotalCost = 0
	for _, rx := range input.Prescriptions {
		record.TotalCost += float64(rx.Amount) * rx.Price
	}

	var shortfalls []StockShortfall
	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if fresh {
			if err := s.repo.CreateRecord(ctx, record); err != nil {
				return fmt.Errorf("create medical record: %w", err)
			}
		} else if err := s.repo.UpdateRecord(ctx, record); err != nil {
			return fmt.Errorf("update medical record: %w", err)
		}
		for _, rx := range input.Prescriptions {
			short, err := s.stock.Deduct(ctx, rx.MedicineID, rx.Amount, &a.ID)
			if err != nil {
				return fmt.Errorf("dispense %s: %w", rx.MedicineName, err)
			}
			if short > 0 {
				shortfalls = append(shortfalls, StockShortfall{
					MedicineID:   rx.MedicineID,
					MedicineName: rx.MedicineName,
					Requested:    rx.Amount,
					Short:        short,
				})
			}
		}
		if err := s.patients.TouchLastVisit(ctx, a.PatientID, record.CreatedAt); err != nil {
			return fmt.Errorf("update last visit: %w", err)
		}

		a.Status = StatusCompleted
		a.DoctorID = &input.DoctorID
		if input.DoctorName != "" {
			a.DoctorName = &input.DoctorName
		}
		return s.repo.UpdateAppointment(ctx, a)
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, a, "visit.completed")
	return record, shortfalls, nil
}

// PaymentRequest settles a completed visit at the cashier desk.
type PaymentRequest struct {
	Discount     float64 `json:"discount"`
	Method       string  `json:"method"`
	CashReceived float64 `json:"cash_received"`

	// ExtraItems covers charges added at the desk, e.g. certificates.
	ExtraItems []struct {
		Description string  `json:"description"`
		Amount      int     `json:"amount"`
		Price       float64 `json:"price"`
	} `json:"extra_items,omitempty"`
}

// ProcessPayment builds the bill from the visit's medical record, takes
// payment and marks the appointment paid, atomically.
func (s *Service) ProcessPayment(ctx context.Context, id uuid.UUID, req PaymentRequest) (*billing.Transaction, float64, error) {
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("appointment not found: %w", err)
	}
	if a.Status != StatusCompleted {
		return nil, 0, fmt.Errorf("cannot take payment for appointment in status %s: %w", a.Status, ErrInvalidTransition)
	}
	if a.PaymentStatus == PaymentPaid {
		return nil, 0, fmt.Errorf("appointment is already paid")
	}

	record, err := s.repo.GetRecordByAppointment(ctx, a.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("medical record not found: %w", err)
	}

	bill := billing.NewBill()
	for _, rx := range record.Prescriptions {
		if err := bill.AddItem(rx.MedicineName, rx.Amount, rx.Price, 0); err != nil {
			return nil, 0, err
		}
	}
	for _, item := range req.ExtraItems {
		if err := bill.AddItem(item.Description, item.Amount, item.Price, 0); err != nil {
			return nil, 0, err
		}
	}
	bill.AddDoctorFeeLine(s.cashier.DoctorFeeService(ctx))
	if err := bill.SetDiscount(req.Discount); err != nil {
		return nil, 0, err
	}

	meta := billing.PaymentMeta{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		PatientName:   a.PatientName,
		DoctorID:      a.DoctorID,
		DoctorName:    a.DoctorName,
		Method:        req.Method,
		CashReceived:  req.CashReceived,
	}

	var tx *billing.Transaction
	var change float64
	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		tx, change, err = s.cashier.RecordPayment(ctx, bill, meta)
		if err != nil {
			return err
		}
		a.PaymentStatus = PaymentPaid
		return s.repo.UpdateAppointment(ctx, a)
	})
	if err != nil {
		return nil, 0, err
	}

	s.publish(ctx, a, "visit.paid")
	return tx, change, nil
}

// Cancel aborts an open visit. Completed visits are part of the clinical
// record and cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment not found: %w", err)
	}
	if !CanTransition(a.Status, StatusCancelled) {
		return nil, fmt.Errorf("cannot cancel appointment in status %s: %w", a.Status, ErrInvalidTransition)
	}
	a.Status = StatusCancelled
	if err := s.repo.UpdateAppointment(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, a, "visit.cancelled")
	return a, nil
}

// Queue returns the day's open visits in treatment order: screened
// patients first, then confirmed, then unconfirmed, ties broken by
// appointment time.
func (s *Service) Queue(ctx context.Context, date time.Time) ([]*Appointment, error) {
	appts, err := s.repo.ListOpenAppointments(ctx, date)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(appts, func(i, j int) bool {
		pi, pj := QueuePriority(appts[i].Status), QueuePriority(appts[j].Status)
		if pi != pj {
			return pi > pj
		}
		return appts[i].StartTime < appts[j].StartTime
	})
	return appts, nil
}

// DayStats summarizes one day's appointments for the dashboard.
type DayStats struct {
	Date      time.Time `json:"date"`
	Total     int       `json:"total"`
	Pending   int       `json:"pending"`
	Confirmed int       `json:"confirmed"`
	Waiting   int       `json:"waiting"`
	Completed int       `json:"completed"`
	Cancelled int       `json:"cancelled"`
}

func (s *Service) Stats(ctx context.Context, date time.Time) (*DayStats, error) {
	counts, err := s.repo.CountByStatus(ctx, date)
	if err != nil {
		return nil, err
	}
	stats := &DayStats{
		Date:      date,
		Pending:   counts[StatusPending],
		Confirmed: counts[StatusConfirmed],
		Waiting:   counts[StatusWaiting],
		Completed: counts[StatusCompleted],
		Cancelled: counts[StatusCancelled],
	}
	stats.Total = stats.Pending + stats.Confirmed + stats.Waiting + stats.Completed + stats.Cancelled
	return stats, nil
}

func (s *Service) GetRecordByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	return s.repo.GetRecordByAppointment(ctx, appointmentID)
}

func (s *Service) ListRecordsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.repo.ListRecordsByPatient(ctx, patientID, limit, offset)
}
