package billing

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

// -- Service catalog --

const serviceCols = `id, name, price, doctor_fee, created_at, updated_at`

func (r *repoPG) CreateService(ctx context.Context, s *ClinicService) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinic_service (id, name, price, doctor_fee)
		VALUES ($1,$2,$3,$4)`,
		s.ID, s.Name, s.Price, s.DoctorFee,
	)
	return err
}

func (r *repoPG) GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	return scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM clinic_service WHERE id = $1`, id))
}

func (r *repoPG) GetServiceByName(ctx context.Context, name string) (*ClinicService, error) {
	return scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM clinic_service WHERE name = $1`, name))
}

func (r *repoPG) UpdateService(ctx context.Context, s *ClinicService) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinic_service SET name=$2, price=$3, doctor_fee=$4, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Price, s.DoctorFee,
	)
	return err
}

func (r *repoPG) DeleteService(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM clinic_service WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListServices(ctx context.Context) ([]*ClinicService, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM clinic_service ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []*ClinicService
	for rows.Next() {
		var s ClinicService
		if err := rows.Scan(&s.ID, &s.Name, &s.Price, &s.DoctorFee, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		services = append(services, &s)
	}
	return services, nil
}

func scanService(row pgx.Row) (*ClinicService, error) {
	var s ClinicService
	err := row.Scan(&s.ID, &s.Name, &s.Price, &s.DoctorFee, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// -- Transactions --

const txCols = `id, appointment_id, patient_id, patient_name, doctor_id, doctor_name,
	items, subtotal, discount, grand_total, payment_method, status, created_at`

func (r *repoPG) CreateTransaction(ctx context.Context, t *Transaction) error {
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO transaction (
			id, appointment_id, patient_id, patient_name, doctor_id, doctor_name,
			items, subtotal, discount, grand_total, payment_method, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at`,
		t.ID, t.AppointmentID, t.PatientID, t.PatientName, t.DoctorID, t.DoctorName,
		t.Items, t.Subtotal, t.Discount, t.GrandTotal, t.PaymentMethod, t.Status,
	).Scan(&t.CreatedAt)
}

func (r *repoPG) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return scanTransaction(r.conn(ctx).QueryRow(ctx, `SELECT `+txCols+` FROM transaction WHERE id = $1`, id))
}

func (r *repoPG) GetTransactionByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Transaction, error) {
	return scanTransaction(r.conn(ctx).QueryRow(ctx,
		`SELECT `+txCols+` FROM transaction WHERE appointment_id = $1 AND status = 'Paid'
		 ORDER BY created_at DESC LIMIT 1`, appointmentID))
}

func (r *repoPG) SetTransactionStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE transaction SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) ListTransactions(ctx context.Context, from, to time.Time, limit, offset int) ([]*Transaction, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM transaction WHERE created_at >= $1 AND created_at < $2`,
		from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+txCols+` FROM transaction WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(
			&t.ID, &t.AppointmentID, &t.PatientID, &t.PatientName, &t.DoctorID, &t.DoctorName,
			&t.Items, &t.Subtotal, &t.Discount, &t.GrandTotal, &t.PaymentMethod, &t.Status, &t.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, &t)
	}
	return txs, total, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.AppointmentID, &t.PatientID, &t.PatientName, &t.DoctorID, &t.DoctorName,
		&t.Items, &t.Subtotal, &t.Discount, &t.GrandTotal, &t.PaymentMethod, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// -- Doctor fees --

func (r *repoPG) AddDoctorFeeEntry(ctx context.Context, e *DoctorFeeEntry) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_fee_entry (id, transaction_id, doctor_id, doctor_name, patient_name, total_fee)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.TransactionID, e.DoctorID, e.DoctorName, e.PatientName, e.TotalFee,
	)
	return err
}

func (r *repoPG) ListDoctorFeeEntries(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*DoctorFeeEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, transaction_id, doctor_id, doctor_name, patient_name, total_fee, created_at
		FROM doctor_fee_entry
		WHERE doctor_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*DoctorFeeEntry
	for rows.Next() {
		var e DoctorFeeEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.DoctorID, &e.DoctorName, &e.PatientName, &e.TotalFee, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

func (r *repoPG) SummarizeDoctorFees(ctx context.Context, from, to time.Time) ([]*DoctorFeeSummary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT doctor_id, doctor_name, COUNT(*), SUM(total_fee)
		FROM doctor_fee_entry
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY doctor_id, doctor_name
		ORDER BY SUM(total_fee) DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*DoctorFeeSummary
	for rows.Next() {
		var s DoctorFeeSummary
		if err := rows.Scan(&s.DoctorID, &s.DoctorName, &s.VisitCount, &s.TotalFee); err != nil {
			return nil, err
		}
		summaries = append(summaries, &s)
	}
	return summaries, nil
}
