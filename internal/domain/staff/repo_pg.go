package staff

import (
	"context"

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

const staffCols = `id, name, role, email, phone, status, license_number, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff (id, name, role, email, phone, status, license_number)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.Name, s.Role, s.Email, s.Phone, s.Status, s.LicenseNumber,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Staff) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET
			name=$2, role=$3, email=$4, phone=$5, status=$6, license_number=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Role, s.Email, s.Phone, s.Status, s.LicenseNumber,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+staffCols+` FROM staff ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []*Staff
	for rows.Next() {
		s, err := scanStaffRow(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, s)
	}
	return members, total, nil
}

func (r *repoPG) ListByRole(ctx context.Context, role string, activeOnly bool) ([]*Staff, error) {
	query := `SELECT ` + staffCols + ` FROM staff WHERE role = $1`
	if activeOnly {
		query += ` AND status = 'Active'`
	}
	query += ` ORDER BY name`

	rows, err := r.conn(ctx).Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*Staff
	for rows.Next() {
		s, err := scanStaffRow(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, s)
	}
	return members, nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Name, &s.Role, &s.Email, &s.Phone, &s.Status, &s.LicenseNumber, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanStaffRow(rows pgx.Rows) (*Staff, error) {
	var s Staff
	err := rows.Scan(&s.ID, &s.Name, &s.Role, &s.Email, &s.Phone, &s.Status, &s.LicenseNumber, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
