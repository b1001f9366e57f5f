package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"energytrack/internal/domain"
	"energytrack/internal/repository"
)

const createMetersTable = `
CREATE TABLE IF NOT EXISTS meters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	location TEXT NOT NULL DEFAULT '',
	meter_type TEXT NOT NULL,
	status TEXT NOT NULL,
	installation_date DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const meterColumns = `id, location, meter_type, status, installation_date, created_at, updated_at`

type MeterRepository struct {
	db *sql.DB
}

func NewMeterRepository(db *sql.DB) repository.MeterRepository {
	return &MeterRepository{db: db}
}

func (r *MeterRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createMetersTable); err != nil {
		return fmt.Errorf("create meters table: %w", err)
	}
	return nil
}

func (r *MeterRepository) Create(ctx context.Context, meter *domain.Meter) (int64, error) {
	now := time.Now().UTC()
	meter.CreatedAt = now
	meter.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO meters (location, meter_type, status, installation_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		meter.Location,
		string(meter.Type),
		string(meter.Status),
		nullTime(meter.InstallationDate),
		meter.CreatedAt,
		meter.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert meter: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("meter last insert id: %w", err)
	}
	meter.ID = id
	return id, nil
}

func (r *MeterRepository) Update(ctx context.Context, meter *domain.Meter) error {
	meter.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE meters
SET location=?, meter_type=?, status=?, installation_date=?, updated_at=?
WHERE id=?`,
		meter.Location,
		string(meter.Type),
		string(meter.Status),
		nullTime(meter.InstallationDate),
		meter.UpdatedAt,
		meter.ID,
	)
	if err != nil {
		return fmt.Errorf("update meter: %w", err)
	}
	return affectedOne(res, "update meter")
}

// Delete removes the meter; its readings and reports go with it through the
// ON DELETE CASCADE foreign keys.
func (r *MeterRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meters WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete meter: %w", err)
	}
	return affectedOne(res, "delete meter")
}

func (r *MeterRepository) GetByID(ctx context.Context, id int64) (*domain.Meter, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+meterColumns+`
FROM meters
WHERE id=?`,
		id,
	)
	return scanMeter(row)
}

func (r *MeterRepository) List(ctx context.Context, page domain.PageRequest) ([]domain.Meter, int64, error) {
	page = page.Normalize()
	total, err := count(ctx, r.db, `SELECT COUNT(*) FROM meters`)
	if err != nil {
		return nil, 0, err
	}
	meters, err := r.query(ctx, `
SELECT `+meterColumns+`
FROM meters
ORDER BY id ASC
LIMIT ? OFFSET ?`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return meters, total, nil
}

func (r *MeterRepository) Search(ctx context.Context, filter domain.MeterFilter) ([]domain.Meter, error) {
	var (
		clauses []string
		args    []any
	)
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		clauses = append(clauses, "location LIKE ?")
		args = append(args, "%"+loc+"%")
	}
	if filter.Type != "" {
		clauses = append(clauses, "meter_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `
SELECT ` + meterColumns + `
FROM meters`
	if len(clauses) > 0 {
		query += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	query += "\nORDER BY id ASC"
	return r.query(ctx, query, args...)
}

func (r *MeterRepository) query(ctx context.Context, query string, args ...any) ([]domain.Meter, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meters: %w", err)
	}
	defer rows.Close()

	meters := []domain.Meter{}
	for rows.Next() {
		meter, err := scanMeter(rows)
		if err != nil {
			return nil, err
		}
		meters = append(meters, *meter)
	}
	return meters, rows.Err()
}

func scanMeter(row scanner) (*domain.Meter, error) {
	var (
		meter       domain.Meter
		meterType   string
		status      string
		installedAt sql.NullTime
	)
	if err := row.Scan(
		&meter.ID,
		&meter.Location,
		&meterType,
		&status,
		&installedAt,
		&meter.CreatedAt,
		&meter.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("meter: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan meter: %w", err)
	}

	meter.Type = domain.MeterType(meterType)
	meter.Status = domain.MeterStatus(status)
	meter.CreatedAt = meter.CreatedAt.Local()
	meter.UpdatedAt = meter.UpdatedAt.Local()
	if installedAt.Valid {
		t := installedAt.Time.Local()
		meter.InstallationDate = &t
	}
	return &meter, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
