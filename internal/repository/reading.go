package repository

import (
	"context"
	"time"

	"energytrack/internal/domain"
)

// ReadingRepository stores meter readings. ListByMeterBetween satisfies the
// series source used by the consumption engine.
type ReadingRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, reading *domain.Reading) (int64, error)
	Update(ctx context.Context, reading *domain.Reading) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Reading, error)
	List(ctx context.Context, page domain.PageRequest) ([]domain.Reading, int64, error)
	ListByMeterBetween(ctx context.Context, meterID int64, start, end time.Time) ([]domain.Reading, error)
	MaxValue(ctx context.Context, meterID int64) (*float64, error)
}
