package inventory

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

const medicineCols = `id, name, description, price, cost, stock, unit,
	min_stock, category, expiry_date, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medicine (id, name, description, price, cost, stock, unit, min_stock, category, expiry_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		m.ID, m.Name, m.Description, m.Price, m.Cost, m.Stock, m.Unit, m.MinStock, m.Category, m.ExpiryDate,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return scanMedicine(r.conn(ctx).QueryRow(ctx, `SELECT `+medicineCols+` FROM medicine WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, m *Medicine) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicine SET
			name=$2, description=$3, price=$4, cost=$5, unit=$6,
			min_stock=$7, category=$8, expiry_date=$9, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Description, m.Price, m.Cost, m.Unit, m.MinStock, m.Category, m.ExpiryDate,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM medicine WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicine`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+medicineCols+` FROM medicine ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectMedicines(rows, total)
}

func (r *repoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Medicine, int, error) {
	pattern := "%" + query + "%"
	where := `WHERE name ILIKE $1 OR category ILIKE $1`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicine `+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medicineCols+` FROM medicine `+where+` ORDER BY name LIMIT $2 OFFSET $3`,
		pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectMedicines(rows, total)
}

func (r *repoPG) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE medicine SET stock = $2, updated_at = NOW() WHERE id = $1`, id, stock)
	return err
}

func (r *repoPG) ListLowStock(ctx context.Context) ([]*Medicine, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medicineCols+` FROM medicine
		 WHERE stock <= COALESCE(NULLIF(min_stock, 0), 10)
		 ORDER BY stock`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	medicines, _, err := collectMedicines(rows, 0)
	return medicines, err
}

func (r *repoPG) StockValue(ctx context.Context) (float64, error) {
	var value float64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(COALESCE(cost, price) * stock), 0) FROM medicine`).Scan(&value)
	return value, err
}

func (r *repoPG) AddMovement(ctx context.Context, mv *StockMovement) error {
	mv.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO stock_movement (id, medicine_id, direction, quantity, reason, ref_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		mv.ID, mv.MedicineID, mv.Direction, mv.Quantity, mv.Reason, mv.RefID,
	)
	return err
}

func (r *repoPG) ListMovements(ctx context.Context, medicineID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_movement WHERE medicine_id = $1`, medicineID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, medicine_id, direction, quantity, reason, ref_id, created_at
		FROM stock_movement WHERE medicine_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		medicineID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []*StockMovement
	for rows.Next() {
		var mv StockMovement
		if err := rows.Scan(&mv.ID, &mv.MedicineID, &mv.Direction, &mv.Quantity, &mv.Reason, &mv.RefID, &mv.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, &mv)
	}
	return movements, total, nil
}

func scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.Price, &m.Cost, &m.Stock, &m.Unit,
		&m.MinStock, &m.Category, &m.ExpiryDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMedicines(rows pgx.Rows, total int) ([]*Medicine, int, error) {
	var medicines []*Medicine
	for rows.Next() {
		var m Medicine
		err := rows.Scan(
			&m.ID, &m.Name, &m.Description, &m.Price, &m.Cost, &m.Stock, &m.Unit,
			&m.MinStock, &m.Category, &m.ExpiryDate, &m.CreatedAt, &m.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		medicines = append(medicines, &m)
	}
	return medicines, total, nil
}
