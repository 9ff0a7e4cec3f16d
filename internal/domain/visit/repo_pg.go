package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinichq/clinic/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// -- Appointments --

const apptCols = `id, patient_id, patient_name, doctor_id, doctor_name, room_id,
	date, start_time, reason, status, payment_status, type, telemed_link,
	created_at, updated_at`

func (r *repoPG) CreateAppointment(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (
			id, patient_id, patient_name, doctor_id, doctor_name, room_id,
			date, start_time, reason, status, payment_status, type, telemed_link
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.PatientName, a.DoctorID, a.DoctorName, a.RoomID,
		a.Date, a.StartTime, a.Reason, a.Status, a.PaymentStatus, a.Type, a.TelemedLink,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *repoPG) UpdateAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET
			doctor_id=$2, doctor_name=$3, room_id=$4, date=$5, start_time=$6,
			reason=$7, status=$8, payment_status=$9, type=$10, telemed_link=$11,
			updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.DoctorID, a.DoctorName, a.RoomID, a.Date, a.StartTime,
		a.Reason, a.Status, a.PaymentStatus, a.Type, a.TelemedLink,
	)
	return err
}

func (r *repoPG) ListAppointments(ctx context.Context, date time.Time, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE date = $1`, date).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE date = $1 ORDER BY start_time LIMIT $2 OFFSET $3`,
		date, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	appts, err := collectAppts(rows)
	return appts, total, err
}

func (r *repoPG) ListOpenAppointments(ctx context.Context, date time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE date = $1 AND status NOT IN ('Completed', 'Cancelled')
		ORDER BY start_time`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppts(rows)
}

func (r *repoPG) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+apptCols+` FROM appointment WHERE patient_id = $1
		 ORDER BY date DESC, start_time DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	appts, err := collectAppts(rows)
	return appts, total, err
}

func (r *repoPG) CountByStatus(ctx context.Context, date time.Time) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT status, COUNT(*) FROM appointment WHERE date = $1 GROUP BY status`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, nil
}

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.PatientName, &a.DoctorID, &a.DoctorName, &a.RoomID,
		&a.Date, &a.StartTime, &a.Reason, &a.Status, &a.PaymentStatus, &a.Type,
		&a.TelemedLink, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAppts(rows pgx.Rows) ([]*Appointment, error) {
	var appts []*Appointment
	for rows.Next() {
		var a Appointment
		err := rows.Scan(
			&a.ID, &a.PatientID, &a.PatientName, &a.DoctorID, &a.DoctorName, &a.RoomID,
			&a.Date, &a.StartTime, &a.Reason, &a.Status, &a.PaymentStatus, &a.Type,
			&a.TelemedLink, &a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		appts = append(appts, &a)
	}
	return appts, nil
}

// -- Medical records --

const recordCols = `id, appointment_id, patient_id, doctor_id, chief_complaint,
	vitals, soap, diagnosis, prescriptions, total_cost, created_at, updated_at`

func (r *repoPG) CreateRecord(ctx context.Context, rec *MedicalRecord) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_record (
			id, appointment_id, patient_id, doctor_id, chief_complaint,
			vitals, soap, diagnosis, prescriptions, total_cost
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		rec.ID, rec.AppointmentID, rec.PatientID, rec.DoctorID, rec.ChiefComplaint,
		rec.Vitals, rec.SOAP, rec.Diagnosis, rec.Prescriptions, rec.TotalCost,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repoPG) UpdateRecord(ctx context.Context, rec *MedicalRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET
			doctor_id=$2, chief_complaint=$3, vitals=$4, soap=$5, diagnosis=$6,
			prescriptions=$7, total_cost=$8, updated_at=NOW()
		WHERE id = $1`,
		rec.ID, rec.DoctorID, rec.ChiefComplaint, rec.Vitals, rec.SOAP,
		rec.Diagnosis, rec.Prescriptions, rec.TotalCost,
	)
	return err
}

func (r *repoPG) GetRecordByAppointment(ctx context.Context, appointmentID uuid.UUID) (*MedicalRecord, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM medical_record WHERE appointment_id = $1`, appointmentID))
}

func (r *repoPG) ListRecordsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM medical_record WHERE patient_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*MedicalRecord
	for rows.Next() {
		var rec MedicalRecord
		err := rows.Scan(
			&rec.ID, &rec.AppointmentID, &rec.PatientID, &rec.DoctorID, &rec.ChiefComplaint,
			&rec.Vitals, &rec.SOAP, &rec.Diagnosis, &rec.Prescriptions, &rec.TotalCost, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, &rec)
	}
	return records, total, nil
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := row.Scan(
		&rec.ID, &rec.AppointmentID, &rec.PatientID, &rec.DoctorID, &rec.ChiefComplaint,
		&rec.Vitals, &rec.SOAP, &rec.Diagnosis, &rec.Prescriptions, &rec.TotalCost, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
