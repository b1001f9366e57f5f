package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"energytrack/internal/domain"
	"energytrack/internal/repository"
)

// reading_time is stored as unix milliseconds so range scans compare integers.
const createReadingsTable = `
CREATE TABLE IF NOT EXISTS meter_readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	meter_id INTEGER NOT NULL REFERENCES meters(id) ON DELETE CASCADE,
	reading_value REAL NULL,
	reading_time INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const createReadingsIndex = `
CREATE INDEX IF NOT EXISTS idx_meter_readings_meter_time ON meter_readings(meter_id, reading_time);
`

const readingColumns = `id, meter_id, reading_value, reading_time, created_at, updated_at`

type ReadingRepository struct {
	db *sql.DB
}

func NewReadingRepository(db *sql.DB) repository.ReadingRepository {
	return &ReadingRepository{db: db}
}

func (r *ReadingRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createReadingsTable); err != nil {
		return fmt.Errorf("create meter_readings table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createReadingsIndex); err != nil {
		return fmt.Errorf("create meter_readings index: %w", err)
	}
	return nil
}

func (r *ReadingRepository) Create(ctx context.Context, reading *domain.Reading) (int64, error) {
	now := time.Now().UTC()
	reading.CreatedAt = now
	reading.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO meter_readings (meter_id, reading_value, reading_time, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		reading.MeterID,
		nullFloat(reading.Value),
		reading.Timestamp.UnixMilli(),
		reading.CreatedAt,
		reading.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading last insert id: %w", err)
	}
	reading.ID = id
	return id, nil
}

func (r *ReadingRepository) Update(ctx context.Context, reading *domain.Reading) error {
	reading.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE meter_readings
SET meter_id=?, reading_value=?, reading_time=?, updated_at=?
WHERE id=?`,
		reading.MeterID,
		nullFloat(reading.Value),
		reading.Timestamp.UnixMilli(),
		reading.UpdatedAt,
		reading.ID,
	)
	if err != nil {
		return fmt.Errorf("update reading: %w", err)
	}
	return affectedOne(res, "update reading")
}

func (r *ReadingRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meter_readings WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete reading: %w", err)
	}
	return affectedOne(res, "delete reading")
}

func (r *ReadingRepository) GetByID(ctx context.Context, id int64) (*domain.Reading, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+readingColumns+`
FROM meter_readings
WHERE id=?`,
		id,
	)
	return scanReading(row)
}

func (r *ReadingRepository) List(ctx context.Context, page domain.PageRequest) ([]domain.Reading, int64, error) {
	page = page.Normalize()
	total, err := count(ctx, r.db, `SELECT COUNT(*) FROM meter_readings`)
	if err != nil {
		return nil, 0, err
	}
	readings, err := r.query(ctx, `
SELECT `+readingColumns+`
FROM meter_readings
ORDER BY reading_time DESC, id DESC
LIMIT ? OFFSET ?`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return readings, total, nil
}

// ListByMeterBetween returns readings with start <= reading_time <= end,
// ascending by time.
func (r *ReadingRepository) ListByMeterBetween(ctx context.Context, meterID int64, start, end time.Time) ([]domain.Reading, error) {
	return r.query(ctx, `
SELECT `+readingColumns+`
FROM meter_readings
WHERE meter_id = ? AND reading_time >= ? AND reading_time <= ?
ORDER BY reading_time ASC, id ASC`,
		meterID,
		start.UnixMilli(),
		end.UnixMilli(),
	)
}

// MaxValue returns the largest non-null reading of the meter, or nil when the
// meter has none.
func (r *ReadingRepository) MaxValue(ctx context.Context, meterID int64) (*float64, error) {
	var max sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, `
SELECT MAX(reading_value) FROM meter_readings WHERE meter_id = ?`,
		meterID,
	).Scan(&max); err != nil {
		return nil, fmt.Errorf("max reading: %w", err)
	}
	if !max.Valid {
		return nil, nil
	}
	v := max.Float64
	return &v, nil
}

func (r *ReadingRepository) query(ctx context.Context, query string, args ...any) ([]domain.Reading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	readings := []domain.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *reading)
	}
	return readings, rows.Err()
}

func scanReading(row scanner) (*domain.Reading, error) {
	var (
		reading     domain.Reading
		value       sql.NullFloat64
		readingTime int64
	)
	if err := row.Scan(
		&reading.ID,
		&reading.MeterID,
		&value,
		&readingTime,
		&reading.CreatedAt,
		&reading.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reading: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan reading: %w", err)
	}

	if value.Valid {
		v := value.Float64
		reading.Value = &v
	}
	reading.Timestamp = time.UnixMilli(readingTime).Local()
	reading.CreatedAt = reading.CreatedAt.Local()
	reading.UpdatedAt = reading.UpdatedAt.Local()
	return &reading, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
