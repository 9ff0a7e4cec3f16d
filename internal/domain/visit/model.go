package visit

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. A visit only ever moves forward:
//
//	Pending -> Confirmed -> Waiting -> Completed
//
// and may be cancelled from any state before completion. Waiting means
// the patient has been screened and is queued for the doctor.
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusWaiting   = "Waiting"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

// Payment states of an appointment.
const (
	PaymentPending = "Pending"
	PaymentPaid    = "Paid"
)

// Appointment types.
const (
	TypeOnsite  = "Onsite"
	TypeTelemed = "Telemed"
)

// ErrInvalidTransition is returned when an operation is applied to an
// appointment in the wrong state.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrValidation marks rejected input; handlers map it to a 400.
var ErrValidation = errors.New("validation failed")

// transitions lists the allowed forward moves. Confirmed may jump
// straight to Completed: a walk-in consultation that skipped the
// screening desk.
var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusWaiting, StatusCompleted, StatusCancelled},
	StatusWaiting:   {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// QueuePriority orders the doctor's queue: screened patients first, then
// confirmed, then unconfirmed bookings. Ties break on appointment time.
func QueuePriority(status string) int {
	switch status {
	case StatusWaiting:
		return 4
	case StatusConfirmed:
		return 3
	case StatusPending:
		return 2
	default:
		return 1
	}
}

// Appointment maps to the appointment table. PatientName and DoctorName
// are denormalized so queue slips and bills print without extra lookups.
type Appointment struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName   string     `db:"patient_name" json:"patient_name"`
	DoctorID      *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	DoctorName    *string    `db:"doctor_name" json:"doctor_name,omitempty"`
	RoomID        *string    `db:"room_id" json:"room_id,omitempty"`
	Date          time.Time  `db:"date" json:"date"`
	StartTime     string     `db:"start_time" json:"start_time"`
	Reason        string     `db:"reason" json:"reason"`
	Status        string     `db:"status" json:"status"`
	PaymentStatus string     `db:"payment_status" json:"payment_status"`
	Type          string     `db:"type" json:"type"`
	TelemedLink   *string    `db:"telemed_link" json:"telemed_link,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsOpen reports whether the visit is still in flight.
func (a *Appointment) IsOpen() bool {
	return a.Status != StatusCompleted && a.Status != StatusCancelled
}

// VitalSigns captures the nurse's screening measurements.
type VitalSigns struct {
	Systolic    int     `json:"systolic"`
	Diastolic   int     `json:"diastolic"`
	HeartRate   int     `json:"heart_rate"`
	Temperature float64 `json:"temperature"`
	Weight      float64 `json:"weight"`
	Height      float64 `json:"height"`
	OxygenSat   *int    `json:"oxygen_sat,omitempty"`
}

// BMI derives body mass index from the recorded weight and height, or
// zero when either is missing.
func (v VitalSigns) BMI() float64 {
	if v.Weight <= 0 || v.Height <= 0 {
		return 0
	}
	m := v.Height / 100
	return v.Weight / (m * m)
}

// SOAPNote is the doctor's structured consultation note.
type SOAPNote struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// PrescriptionItem is one dispensed medicine on a medical record.
type PrescriptionItem struct {
	MedicineID   uuid.UUID `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	Amount       int       `json:"amount"`
	Unit         string    `json:"unit"`
	Dosage       string    `json:"dosage"`
	Price        float64   `json:"price"`
}

// MedicalRecord maps to the medical_record table, one row per
// appointment. Screening opens a draft holding the chief complaint and
// vitals; the consultation fills in doctor, SOAP, diagnosis and
// prescriptions in place. A walk-in that skipped screening gets the
// whole record written at consultation time.
type MedicalRecord struct {
	ID             uuid.UUID          `db:"id" json:"id"`
	AppointmentID  uuid.UUID          `db:"appointment_id" json:"appointment_id"`
	PatientID      uuid.UUID          `db:"patient_id" json:"patient_id"`
	DoctorID       *uuid.UUID         `db:"doctor_id" json:"doctor_id,omitempty"`
	ChiefComplaint string             `db:"chief_complaint" json:"chief_complaint"`
	Vitals         VitalSigns         `db:"vitals" json:"vitals"`
	SOAP           SOAPNote           `db:"soap" json:"soap"`
	Diagnosis      string             `db:"diagnosis" json:"diagnosis"`
	Prescriptions  []PrescriptionItem `db:"prescriptions" json:"prescriptions"`
	TotalCost      float64            `db:"total_cost" json:"total_cost"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// StockShortfall reports a prescription that could not be fully
// dispensed from stock.
type StockShortfall struct {
	MedicineID   uuid.UUID `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	Requested    int       `json:"requested"`
	Short        int       `json:"short"`
}
