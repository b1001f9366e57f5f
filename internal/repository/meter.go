package repository

import (
	"context"

	"energytrack/internal/domain"
)

// MeterRepository defines persistence operations for meters.
type MeterRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, meter *domain.Meter) (int64, error)
	Update(ctx context.Context, meter *domain.Meter) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Meter, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.Meter, int64, error)
	Search(ctx context.Context, filter domain.MeterFilter) ([]domain.Meter, error)
}
