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

const createReportsTable = `
CREATE TABLE IF NOT EXISTS electricity_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	meter_id INTEGER NOT NULL REFERENCES meters(id) ON DELETE CASCADE,
	start_time INTEGER NOT NULL,
	end_time INTEGER NOT NULL,
	total_consumption REAL NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const reportColumns = `id, meter_id, start_time, end_time, total_consumption, created_at, updated_at`

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) repository.ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createReportsTable); err != nil {
		return fmt.Errorf("create electricity_reports table: %w", err)
	}
	return nil
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.ElectricityReport) (int64, error) {
	now := time.Now().UTC()
	report.CreatedAt = now
	report.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO electricity_reports (meter_id, start_time, end_time, total_consumption, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		report.MeterID,
		report.StartTime.UnixMilli(),
		report.EndTime.UnixMilli(),
		report.TotalConsumption,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report last insert id: %w", err)
	}
	report.ID = id
	return id, nil
}

func (r *ReportRepository) Update(ctx context.Context, report *domain.ElectricityReport) error {
	report.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE electricity_reports
SET meter_id=?, start_time=?, end_time=?, total_consumption=?, updated_at=?
WHERE id=?`,
		report.MeterID,
		report.StartTime.UnixMilli(),
		report.EndTime.UnixMilli(),
		report.TotalConsumption,
		report.UpdatedAt,
		report.ID,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return affectedOne(res, "update report")
}

func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM electricity_reports WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return affectedOne(res, "delete report")
}

func (r *ReportRepository) GetByID(ctx context.Context, id int64) (*domain.ElectricityReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+reportColumns+`
FROM electricity_reports
WHERE id=?`,
		id,
	)
	return scanReport(row)
}

func (r *ReportRepository) List(ctx context.Context, page domain.PageRequest) ([]domain.ElectricityReport, int64, error) {
	page = page.Normalize()
	total, err := count(ctx, r.db, `SELECT COUNT(*) FROM electricity_reports`)
	if err != nil {
		return nil, 0, err
	}
	reports, err := r.query(ctx, `
SELECT `+reportColumns+`
FROM electricity_reports
ORDER BY id DESC
LIMIT ? OFFSET ?`, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// Search returns reports of the meter whose period lies inside the optional
// bounds.
func (r *ReportRepository) Search(ctx context.Context, filter domain.ReportFilter) ([]domain.ElectricityReport, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.MeterID > 0 {
		clauses = append(clauses, "meter_id = ?")
		args = append(args, filter.MeterID)
	}
	if filter.StartTime != nil {
		clauses = append(clauses, "start_time >= ?")
		args = append(args, filter.StartTime.UnixMilli())
	}
	if filter.EndTime != nil {
		clauses = append(clauses, "end_time <= ?")
		args = append(args, filter.EndTime.UnixMilli())
	}

	query := `
SELECT ` + reportColumns + `
FROM electricity_reports`
	if len(clauses) > 0 {
		query += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	query += "\nORDER BY start_time ASC, id ASC"
	return r.query(ctx, query, args...)
}

func (r *ReportRepository) query(ctx context.Context, query string, args ...any) ([]domain.ElectricityReport, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	reports := []domain.ElectricityReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func scanReport(row scanner) (*domain.ElectricityReport, error) {
	var (
		report     domain.ElectricityReport
		start, end int64
	)
	if err := row.Scan(
		&report.ID,
		&report.MeterID,
		&start,
		&end,
		&report.TotalConsumption,
		&report.CreatedAt,
		&report.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	report.StartTime = time.UnixMilli(start).Local()
	report.EndTime = time.UnixMilli(end).Local()
	report.CreatedAt = report.CreatedAt.Local()
	report.UpdatedAt = report.UpdatedAt.Local()
	return &report, nil
}
