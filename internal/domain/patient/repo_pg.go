package patient

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

const patientCols = `id, hn, id_card_number, name, dob, gender, blood_type,
	phone, address, last_visit_at, allergies, history, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	// HN is assigned from a sequence so registration desks can never
	// hand out the same number twice.
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (
			id, hn, id_card_number, name, dob, gender, blood_type,
			phone, address, allergies, history
		) VALUES (
			$1, 'HN-' || lpad(nextval('patient_hn_seq')::text, 5, '0'),
			$2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING hn, created_at, updated_at`,
		p.ID, p.IDCardNumber, p.Name, p.DOB, p.Gender, p.BloodType,
		p.Phone, p.Address, p.Allergies, p.History,
	).Scan(&p.HN, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) GetByHN(ctx context.Context, hn string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE hn = $1`, hn))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET
			id_card_number=$2, name=$3, dob=$4, gender=$5, blood_type=$6,
			phone=$7, address=$8, allergies=$9, history=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.IDCardNumber, p.Name, p.DOB, p.Gender, p.BloodType,
		p.Phone, p.Address, p.Allergies, p.History,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY hn LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	pattern := "%" + query + "%"
	where := `WHERE hn ILIKE $1 OR name ILIKE $1 OR phone ILIKE $1 OR id_card_number ILIKE $1`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient `+where+` ORDER BY hn LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func (r *repoPG) TouchLastVisit(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET last_visit_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.HN, &p.IDCardNumber, &p.Name, &p.DOB, &p.Gender, &p.BloodType,
		&p.Phone, &p.Address, &p.LastVisitAt, &p.Allergies, &p.History,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows, total int) ([]*Patient, int, error) {
	var patients []*Patient
	for rows.Next() {
		var p Patient
		err := rows.Scan(
			&p.ID, &p.HN, &p.IDCardNumber, &p.Name, &p.DOB, &p.Gender, &p.BloodType,
			&p.Phone, &p.Address, &p.LastVisitAt, &p.Allergies, &p.History,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, &p)
	}
	return patients, total, nil
}
