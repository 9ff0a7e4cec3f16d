package visit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinichq/clinic/internal/domain/billing"
	"github.com/clinichq/clinic/internal/domain/patient"
	"github.com/clinichq/clinic/internal/platform/db"
)

// -- Mock Repository --

type mockRepo struct {
	appointments map[uuid.UUID]*Appointment
	records      map[uuid.UUID]*MedicalRecord // keyed by appointment id
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		appointments: make(map[uuid.UUID]*Appointment),
		records:      make(map[uuid.UUID]*MedicalRecord),
	}
}

func (m *mockRepo) CreateAppointment(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) UpdateAppointment(_ context.Context, a *Appointment) error {
	if _, ok := m.appointments[a.ID]; !ok {
		return fmt.Errorf("not found")
	}
	a.UpdatedAt = time.Now()
	cp := *a
	m.appointments[a.ID] = &cp
	return nil
}

func (m *mockRepo) ListAppointments(_ context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appointments {
		if sameDay(a.Date, date) {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListOpenAppointments(_ context.Context, date time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.appointments {
		if sameDay(a.Date, date) && a.IsOpen() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) CountByStatus(_ context.Context, date time.Time) (map[string]int, error) {
	counts := make(map[string]int)
	for _, a := range m.appointments {
		if sameDay(a.Date, date) {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (m *mockRepo) CreateRecord(_ context.Context, r *MedicalRecord) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.records[r.AppointmentID] = &cp
	return nil
}

func (m *mockRepo) UpdateRecord(_ context.Context, r *MedicalRecord) error {
	if _, ok := m.records[r.AppointmentID]; !ok {
		return fmt.Errorf("not found")
	}
	r.UpdatedAt = time.Now()
	cp := *r
	m.records[r.AppointmentID] = &cp
	return nil
}

func (m *mockRepo) GetRecordByAppointment(_ context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	r, ok := m.records[appointmentID]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) ListRecordsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var out []*MedicalRecord
	for _, r := range m.records {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// -- Mock collaborators --

type mockStock struct {
	levels  map[uuid.UUID]int
	deducts int
	failOn  uuid.UUID
}

func (m *mockStock) Deduct(_ context.Context, medicineID uuid.UUID, qty int, _ *uuid.UUID) (int, error) {
	if m.failOn != uuid.Nil && medicineID == m.failOn {
		return 0, fmt.Errorf("deduct failed")
	}
	have := m.levels[medicineID]
	if have >= qty {
		m.levels[medicineID] = have - qty
		return 0, nil
	}
	m.levels[medicineID] = 0
	return qty - have, nil
}

type mockPatients struct {
	touched map[uuid.UUID]time.Time
	missing map[uuid.UUID]bool
}

func (m *mockPatients) GetPatient(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	if m.missing[id] {
		return nil, fmt.Errorf("patient %s not found", id)
	}
	return &patient.Patient{ID: id, Name: "Somsak Jaidee"}, nil
}

func (m *mockPatients) TouchLastVisit(_ context.Context, id uuid.UUID, at time.Time) error {
	if m.touched == nil {
		m.touched = make(map[uuid.UUID]time.Time)
	}
	m.touched[id] = at
	return nil
}

type mockCashier struct {
	feeService   *billing.ClinicService
	transactions []*billing.Transaction
	failPayment  error
}

func (m *mockCashier) DoctorFeeService(_ context.Context) *billing.ClinicService {
	return m.feeService
}

func (m *mockCashier) RecordPayment(_ context.Context, bill *billing.Bill, meta billing.PaymentMeta) (*billing.Transaction, float64, error) {
	if m.failPayment != nil {
		return nil, 0, m.failPayment
	}
	if meta.Method == billing.PaymentCash && meta.CashReceived < bill.GrandTotal() {
		return nil, 0, fmt.Errorf("cash received %.2f is less than total %.2f: %w",
			meta.CashReceived, bill.GrandTotal(), billing.ErrInsufficientPayment)
	}
	t := &billing.Transaction{
		ID:         uuid.New(),
		PatientID:  meta.PatientID,
		GrandTotal: bill.GrandTotal(),
		Status:     billing.StatusPaid,
	}
	m.transactions = append(m.transactions, t)
	return t, bill.Change(meta.CashReceived), nil
}

func newTestService() (*Service, *mockRepo, *mockStock, *mockPatients, *mockCashier) {
	repo := newMockRepo()
	stock := &mockStock{levels: make(map[uuid.UUID]int)}
	patients := &mockPatients{}
	cashier := &mockCashier{}
	svc := NewService(repo, db.NoopTxRunner{}, stock, patients, cashier)
	return svc, repo, stock, patients, cashier
}

func newAppointment(t *testing.T, svc *Service, status string) *Appointment {
	t.Helper()
	a := &Appointment{
		PatientID:   uuid.New(),
		PatientName: "Somsak Jaidee",
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:30",
		Reason:      "Fever",
	}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	advanceTo(t, svc, a, status)
	return a
}

// advanceTo walks the appointment through the lifecycle to the target
// status using the real operations.
func advanceTo(t *testing.T, svc *Service, a *Appointment, status string) {
	t.Helper()
	ctx := context.Background()
	steps := map[string]int{
		StatusPending: 0, StatusConfirmed: 1, StatusWaiting: 2, StatusCompleted: 3,
	}
	target, ok := steps[status]
	if !ok {
		t.Fatalf("cannot advance to %s", status)
	}
	if target >= 1 {
		if _, err := svc.ConfirmAppointment(ctx, a.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}
	if target >= 2 {
		if _, err := svc.Screen(ctx, a.ID, ScreenInput{
			Vitals:         VitalSigns{Systolic: 120, Diastolic: 80, HeartRate: 72, Temperature: 37.2},
			ChiefComplaint: "Fever for 2 days",
		}); err != nil {
			t.Fatalf("screen: %v", err)
		}
	}
	if target >= 3 {
		if _, _, err := svc.CompleteConsultation(ctx, a.ID, ConsultationInput{
			DoctorID:       uuid.New(),
			DoctorName:     "Dr. Wilai",
			ChiefComplaint: "Fever for 2 days",
			Diagnosis:      "Viral infection",
		}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	fresh, err := svc.GetAppointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	*a = *fresh
}

// -- Booking --

func TestCreateAppointmentDefaults(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	a := &Appointment{
		PatientID:   uuid.New(),
		PatientName: "Somsak Jaidee",
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:30",
		Reason:      "Fever",
	}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if a.Status != StatusPending {
		t.Errorf("status = %s, want %s", a.Status, StatusPending)
	}
	if a.PaymentStatus != PaymentPending {
		t.Errorf("payment status = %s, want %s", a.PaymentStatus, PaymentPending)
	}
	if a.Type != TypeOnsite {
		t.Errorf("type = %s, want %s", a.Type, TypeOnsite)
	}
	if a.TelemedLink != nil {
		t.Errorf("onsite visit should not get a telemed link")
	}
}

func TestCreateAppointmentConfirmedOnTheSpot(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	a := &Appointment{
		PatientID:   uuid.New(),
		PatientName: "Somsak Jaidee",
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:30",
		Reason:      "Fever",
		Status:      StatusConfirmed,
	}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if a.Status != StatusConfirmed {
		t.Errorf("status = %s, want %s", a.Status, StatusConfirmed)
	}
}

func TestCreateAppointmentTelemedLink(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	a := &Appointment{
		PatientID:   uuid.New(),
		PatientName: "Somsak Jaidee",
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		Reason:      "Follow-up",
		Type:        TypeTelemed,
	}
	if err := svc.CreateAppointment(context.Background(), a); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if a.TelemedLink == nil {
		t.Fatal("telemed visit should get a room link")
	}
	want := "/ws/telemed?room=" + a.ID.String()
	if *a.TelemedLink != want {
		t.Errorf("link = %s, want %s", *a.TelemedLink, want)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	cases := []struct {
		name string
		a    Appointment
	}{
		{"missing patient", Appointment{PatientName: "X", Date: time.Now(), StartTime: "09:00", Reason: "Fever"}},
		{"missing reason", Appointment{PatientID: uuid.New(), PatientName: "X", Date: time.Now(), StartTime: "09:00"}},
		{"bad time", Appointment{PatientID: uuid.New(), PatientName: "X", Date: time.Now(), StartTime: "9:3", Reason: "Fever"}},
		{"bad type", Appointment{PatientID: uuid.New(), PatientName: "X", Date: time.Now(), StartTime: "09:00", Reason: "Fever", Type: "HouseCall"}},
		{"bad initial status", Appointment{PatientID: uuid.New(), PatientName: "X", Date: time.Now(), StartTime: "09:00", Reason: "Fever", Status: StatusWaiting}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := tc.a
			err := svc.CreateAppointment(context.Background(), &a)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateAppointmentResolvesPatient(t *testing.T) {
	svc, repo, _, patients, _ := newTestService()
	ctx := context.Background()

	ghost := uuid.New()
	patients.missing = map[uuid.UUID]bool{ghost: true}
	a := &Appointment{
		PatientID: ghost,
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:30",
		Reason:    "Fever",
	}
	if err := svc.CreateAppointment(ctx, a); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation for unknown patient", err)
	}
	if len(repo.appointments) != 0 {
		t.Error("unresolved patient must not be booked")
	}

	// The registry is the source of truth for the denormalized name,
	// not whatever the client typed.
	b := &Appointment{
		PatientID:   uuid.New(),
		PatientName: "Mistyped Name",
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "10:00",
		Reason:      "Fever",
	}
	if err := svc.CreateAppointment(ctx, b); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if b.PatientName != "Somsak Jaidee" {
		t.Errorf("patient name = %q, want the registry name", b.PatientName)
	}
}

// -- Lifecycle --

func TestLifecycleHappyPath(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	a := newAppointment(t, svc, StatusCompleted)

	if a.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", a.Status, StatusCompleted)
	}
	if a.DoctorID == nil {
		t.Error("completed visit should carry the doctor")
	}
}

func TestTransitionsAreMonotonic(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()

	// Completing an unconfirmed booking is not allowed.
	a := newAppointment(t, svc, StatusPending)
	_, _, err := svc.CompleteConsultation(ctx, a.ID, ConsultationInput{
		DoctorID: uuid.New(), ChiefComplaint: "x", Diagnosis: "x",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete from Pending: err = %v, want ErrInvalidTransition", err)
	}

	// Screening before confirmation is not allowed.
	_, err = svc.Screen(ctx, a.ID, ScreenInput{
		Vitals:         VitalSigns{Systolic: 120, Diastolic: 80, HeartRate: 70},
		ChiefComplaint: "Fever",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("screen from Pending: err = %v, want ErrInvalidTransition", err)
	}

	// Confirming twice is not allowed.
	b := newAppointment(t, svc, StatusConfirmed)
	if _, err := svc.ConfirmAppointment(ctx, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double confirm: err = %v, want ErrInvalidTransition", err)
	}
}

func TestScreenOpensDraftRecord(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	a := newAppointment(t, svc, StatusConfirmed)

	doctorID := uuid.New()
	doctorName := "Dr. Wilai"
	room := "R2"
	out, err := svc.Screen(context.Background(), a.ID, ScreenInput{
		Vitals:         VitalSigns{Systolic: 135, Diastolic: 85, HeartRate: 88, Temperature: 38.5},
		ChiefComplaint: "High fever",
		DoctorID:       &doctorID,
		DoctorName:     &doctorName,
		RoomID:         &room,
	})
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if out.Status != StatusWaiting {
		t.Errorf("status = %s, want %s", out.Status, StatusWaiting)
	}
	if out.DoctorID == nil || *out.DoctorID != doctorID {
		t.Error("doctor assignment not stored")
	}
	if out.RoomID == nil || *out.RoomID != room {
		t.Error("room assignment not stored")
	}

	draft, err := svc.GetRecordByAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("draft record not created: %v", err)
	}
	if draft.Vitals.Temperature != 38.5 {
		t.Errorf("draft vitals = %+v", draft.Vitals)
	}
	if draft.ChiefComplaint != "High fever" {
		t.Errorf("draft chief complaint = %q", draft.ChiefComplaint)
	}
	if draft.Diagnosis != "" || len(draft.Prescriptions) != 0 {
		t.Errorf("draft should carry no consultation output: %+v", draft)
	}
}

func TestScreenRequiresIntake(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	a := newAppointment(t, svc, StatusConfirmed)

	_, err := svc.Screen(context.Background(), a.ID, ScreenInput{ChiefComplaint: "Fever"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("missing vitals: err = %v, want ErrValidation", err)
	}

	_, err = svc.Screen(context.Background(), a.ID, ScreenInput{
		Vitals: VitalSigns{Systolic: 120, Diastolic: 80, HeartRate: 70},
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("missing chief complaint: err = %v, want ErrValidation", err)
	}
}

// -- Consultation --

func TestCompleteConsultationRequiresDiagnosis(t *testing.T) {
	svc, repo, _, patients, _ := newTestService()
	a := newAppointment(t, svc, StatusWaiting)

	_, _, err := svc.CompleteConsultation(context.Background(), a.ID, ConsultationInput{
		DoctorID:       uuid.New(),
		ChiefComplaint: "Fever",
		Diagnosis:      "   ",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	// The screening draft must be untouched.
	draft := repo.records[a.ID]
	if draft == nil || draft.Diagnosis != "" || draft.DoctorID != nil {
		t.Errorf("draft record should be untouched: %+v", draft)
	}
	if len(patients.touched) != 0 {
		t.Error("last visit should not be touched")
	}
	fresh, _ := svc.GetAppointment(context.Background(), a.ID)
	if fresh.Status != StatusWaiting {
		t.Errorf("status = %s, want %s", fresh.Status, StatusWaiting)
	}
}

func TestCompleteConsultationDispensesAndRecords(t *testing.T) {
	svc, _, stock, patients, _ := newTestService()
	a := newAppointment(t, svc, StatusWaiting)

	medA, medB := uuid.New(), uuid.New()
	stock.levels[medA] = 50
	stock.levels[medB] = 5

	record, shortfalls, err := svc.CompleteConsultation(context.Background(), a.ID, ConsultationInput{
		DoctorID:       uuid.New(),
		DoctorName:     "Dr. Wilai",
		ChiefComplaint: "Fever for 2 days",
		Diagnosis:      "Viral infection",
		SOAP:           SOAPNote{Subjective: "fever, fatigue", Plan: "rest, fluids"},
		Prescriptions: []PrescriptionItem{
			{MedicineID: medA, MedicineName: "Paracetamol 500mg", Amount: 20, Unit: "tab", Price: 1.5},
			{MedicineID: medB, MedicineName: "Amoxicillin 500mg", Amount: 10, Unit: "cap", Price: 5},
		},
	})
	if err != nil {
		t.Fatalf("CompleteConsultation: %v", err)
	}

	if record.TotalCost != 20*1.5+10*5 {
		t.Errorf("total cost = %.2f, want %.2f", record.TotalCost, 20*1.5+10*5.0)
	}
	if record.Vitals.Systolic != 120 {
		t.Errorf("screening vitals should carry into the record, got %+v", record.Vitals)
	}
	if record.DoctorID == nil {
		t.Error("record should carry the consulting doctor")
	}

	// Paracetamol fully covered, amoxicillin short by 5 and floored at 0.
	if stock.levels[medA] != 30 {
		t.Errorf("medA stock = %d, want 30", stock.levels[medA])
	}
	if stock.levels[medB] != 0 {
		t.Errorf("medB stock = %d, want 0", stock.levels[medB])
	}
	if len(shortfalls) != 1 || shortfalls[0].MedicineID != medB || shortfalls[0].Short != 5 {
		t.Errorf("shortfalls = %+v, want one entry short 5 for medB", shortfalls)
	}

	if _, ok := patients.touched[a.PatientID]; !ok {
		t.Error("last visit should be stamped")
	}
}

func TestCompleteConsultationReusesScreeningDraft(t *testing.T) {
	svc, repo, _, _, _ := newTestService()
	a := newAppointment(t, svc, StatusWaiting)

	draft, err := svc.GetRecordByAppointment(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}

	record, _, err := svc.CompleteConsultation(context.Background(), a.ID, ConsultationInput{
		DoctorID:  uuid.New(),
		Diagnosis: "Viral infection",
	})
	if err != nil {
		t.Fatalf("CompleteConsultation: %v", err)
	}
	if record.ID != draft.ID {
		t.Error("consultation must update the screening draft, not create a second record")
	}
	if len(repo.records) != 1 {
		t.Errorf("records = %d, want 1", len(repo.records))
	}
	// Intake data survives when the doctor does not override it.
	if record.ChiefComplaint != draft.ChiefComplaint || record.Vitals != draft.Vitals {
		t.Errorf("intake data lost: %+v", record)
	}
}

func TestCompleteConsultationWalkIn(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	a := newAppointment(t, svc, StatusConfirmed)

	// No screening happened, so the consultation must supply the chief
	// complaint itself.
	_, _, err := svc.CompleteConsultation(context.Background(), a.ID, ConsultationInput{
		DoctorID:  uuid.New(),
		Diagnosis: "Muscle strain",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("missing chief complaint: err = %v, want ErrValidation", err)
	}

	record, _, err := svc.CompleteConsultation(context.Background(), a.ID, ConsultationInput{
		DoctorID:       uuid.New(),
		ChiefComplaint: "Back pain",
		Diagnosis:      "Muscle strain",
	})
	if err != nil {
		t.Fatalf("CompleteConsultation: %v", err)
	}
	if record.ChiefComplaint != "Back pain" {
		t.Errorf("chief complaint = %q", record.ChiefComplaint)
	}

	fresh, _ := svc.GetAppointment(context.Background(), a.ID)
	if fresh.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", fresh.Status, StatusCompleted)
	}
}

// -- Payment --

func payableVisit(t *testing.T, svc *Service, stock *mockStock) *Appointment {
	t.Helper()
	a := newAppointment(t, svc, StatusWaiting)
	med := uuid.New()
	stock.levels[med] = 100
	_, _, err := svc.CompleteConsultation(context.Background(), a.ID, ConsultationInput{
		DoctorID:       uuid.New(),
		DoctorName:     "Dr. Wilai",
		ChiefComplaint: "Fever",
		Diagnosis:      "Viral infection",
		Prescriptions: []PrescriptionItem{
			{MedicineID: med, MedicineName: "Paracetamol 500mg", Amount: 2, Unit: "tab", Price: 1.5},
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	fresh, _ := svc.GetAppointment(context.Background(), a.ID)
	return fresh
}

func TestProcessPaymentCash(t *testing.T) {
	svc, _, stock, _, cashier := newTestService()
	a := payableVisit(t, svc, stock)

	// Doctor Fee 300 + 2 x 1.50 = 303.
	tx, change, err := svc.ProcessPayment(context.Background(), a.ID, PaymentRequest{
		Method:       billing.PaymentCash,
		CashReceived: 500,
	})
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if tx.GrandTotal != 303 {
		t.Errorf("grand total = %.2f, want 303", tx.GrandTotal)
	}
	if change != 197 {
		t.Errorf("change = %.2f, want 197", change)
	}
	if len(cashier.transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(cashier.transactions))
	}

	fresh, _ := svc.GetAppointment(context.Background(), a.ID)
	if fresh.PaymentStatus != PaymentPaid {
		t.Errorf("payment status = %s, want %s", fresh.PaymentStatus, PaymentPaid)
	}
}

func TestProcessPaymentInsufficientCash(t *testing.T) {
	svc, _, stock, _, cashier := newTestService()
	a := payableVisit(t, svc, stock)

	_, _, err := svc.ProcessPayment(context.Background(), a.ID, PaymentRequest{
		Method:       billing.PaymentCash,
		CashReceived: 100,
	})
	if !errors.Is(err, billing.ErrInsufficientPayment) {
		t.Fatalf("err = %v, want ErrInsufficientPayment", err)
	}
	if len(cashier.transactions) != 0 {
		t.Error("no transaction may be written")
	}
	fresh, _ := svc.GetAppointment(context.Background(), a.ID)
	if fresh.PaymentStatus != PaymentPending {
		t.Errorf("payment status = %s, want %s", fresh.PaymentStatus, PaymentPending)
	}
}

func TestProcessPaymentRejectedBeforeCompletion(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	a := newAppointment(t, svc, StatusWaiting)

	_, _, err := svc.ProcessPayment(context.Background(), a.ID, PaymentRequest{
		Method: billing.PaymentTransfer,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestProcessPaymentTwiceRejected(t *testing.T) {
	svc, _, stock, _, _ := newTestService()
	a := payableVisit(t, svc, stock)

	if _, _, err := svc.ProcessPayment(context.Background(), a.ID, PaymentRequest{
		Method: billing.PaymentTransfer,
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if _, _, err := svc.ProcessPayment(context.Background(), a.ID, PaymentRequest{
		Method: billing.PaymentTransfer,
	}); err == nil {
		t.Error("second payment should be rejected")
	}
}

// -- Cancellation --

func TestCancelOpenVisit(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	for _, status := range []string{StatusPending, StatusConfirmed, StatusWaiting} {
		a := newAppointment(t, svc, status)
		out, err := svc.Cancel(context.Background(), a.ID)
		if err != nil {
			t.Errorf("cancel from %s: %v", status, err)
			continue
		}
		if out.Status != StatusCancelled {
			t.Errorf("status = %s, want %s", out.Status, StatusCancelled)
		}
	}
}

func TestCancelCompletedRejected(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	a := newAppointment(t, svc, StatusCompleted)

	_, err := svc.Cancel(context.Background(), a.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}

	b := newAppointment(t, svc, StatusPending)
	if _, err := svc.Cancel(context.Background(), b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double cancel: err = %v, want ErrInvalidTransition", err)
	}
}

// -- Queue --

func TestQueueOrdering(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	book := func(start, status string) *Appointment {
		a := &Appointment{
			PatientID:   uuid.New(),
			PatientName: "P " + start,
			Date:        date,
			StartTime:   start,
			Reason:      "Checkup",
		}
		if err := svc.CreateAppointment(ctx, a); err != nil {
			t.Fatalf("create: %v", err)
		}
		advanceTo(t, svc, a, status)
		return a
	}

	pendingLate := book("08:00", StatusPending)
	confirmed := book("10:00", StatusConfirmed)
	waitingLate := book("11:00", StatusWaiting)
	waitingEarly := book("09:00", StatusWaiting)
	done := book("07:00", StatusCompleted)
	cancelled := book("07:30", StatusPending)
	if _, err := svc.Cancel(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	queue, err := svc.Queue(ctx, date)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}

	want := []uuid.UUID{waitingEarly.ID, waitingLate.ID, confirmed.ID, pendingLate.ID}
	if len(queue) != len(want) {
		t.Fatalf("queue length = %d, want %d", len(queue), len(want))
	}
	for i, id := range want {
		if queue[i].ID != id {
			t.Errorf("queue[%d] = %s %s, want position for %s", i, queue[i].Status, queue[i].StartTime, id)
		}
	}
	for _, a := range queue {
		if a.ID == done.ID || a.ID == cancelled.ID {
			t.Error("closed visits must not appear in the queue")
		}
	}
}

func TestStats(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	ctx := context.Background()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	newAppointment(t, svc, StatusPending)
	newAppointment(t, svc, StatusConfirmed)
	newAppointment(t, svc, StatusWaiting)
	newAppointment(t, svc, StatusCompleted)

	stats, err := svc.Stats(ctx, date)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("total = %d, want 4", stats.Total)
	}
	if stats.Pending != 1 || stats.Confirmed != 1 || stats.Waiting != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
