package consumption

import (
	"context"

	"energytrack/internal/apperr"
	"energytrack/internal/domain"
)

// Total returns last.value - first.value. The result is not clamped, so a
// counter reset yields a negative figure.
func Total(s Series) (float64, error) {
	if len(s.Readings) < 2 {
		return 0, apperr.New(apperr.CodeInsufficientReadings)
	}
	first := s.Readings[0]
	last := s.Readings[len(s.Readings)-1]
	if first.Value == nil || last.Value == nil {
		return 0, apperr.New(apperr.CodeInvalidReadingValue)
	}
	return *last.Value - *first.Value, nil
}

// Aggregator reduces a meter's readings over a bound to one consumption figure.
type Aggregator struct {
	src SeriesSource
}

func NewAggregator(src SeriesSource) *Aggregator {
	return &Aggregator{src: src}
}

func (a *Aggregator) Aggregate(ctx context.Context, meterID int64, rng domain.TimeRange) (float64, error) {
	series, err := Load(ctx, a.src, meterID, rng)
	if err != nil {
		return 0, err
	}
	return Total(series)
}
