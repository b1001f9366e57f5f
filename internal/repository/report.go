package repository

import (
	"context"

	"energytrack/internal/domain"
)

// ReportRepository stores computed electricity reports.
type ReportRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, report *domain.ElectricityReport) (int64, error)
	Update(ctx context.Context, report *domain.ElectricityReport) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.ElectricityReport, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.ElectricityReport, int64, error)
	Search(ctx context.Context, filter domain.ReportFilter) ([]domain.ElectricityReport, error)
}
