package consumption

import (
	"context"
	"fmt"
	"sort"
	"time"

	"energytrack/internal/apperr"
	"energytrack/internal/domain"
)

// SeriesSource loads the raw readings of one meter inside an inclusive bound.
// No ordering is assumed; Load sorts the result.
type SeriesSource interface {
	ListByMeterBetween(ctx context.Context, meterID int64, start, end time.Time) ([]domain.Reading, error)
}

// Series is an ascending, time-ordered view over one meter's readings.
type Series struct {
	MeterID  int64
	Range    domain.TimeRange
	Readings []domain.Reading
}

// NewSeries copies readings, drops anything outside rng and orders the rest
// by timestamp. Readings sharing a timestamp keep their input order.
func NewSeries(meterID int64, rng domain.TimeRange, readings []domain.Reading) Series {
	kept := make([]domain.Reading, 0, len(readings))
	for _, r := range readings {
		if r.MeterID != 0 && r.MeterID != meterID {
			continue
		}
		if !rng.Contains(r.Timestamp) {
			continue
		}
		kept = append(kept, r)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	return Series{MeterID: meterID, Range: rng, Readings: kept}
}

func (s Series) Len() int { return len(s.Readings) }

// Load validates the request and fetches a series from src.
func Load(ctx context.Context, src SeriesSource, meterID int64, rng domain.TimeRange) (Series, error) {
	if meterID <= 0 {
		return Series{}, apperr.New(apperr.CodeInvalidMeterID)
	}
	if rng.Start.IsZero() || rng.End.IsZero() {
		return Series{}, apperr.New(apperr.CodeMissingTimeRange)
	}
	if rng.Start.After(rng.End) {
		return Series{}, apperr.New(apperr.CodeInvalidTimeRange)
	}
	readings, err := src.ListByMeterBetween(ctx, meterID, rng.Start, rng.End)
	if err != nil {
		return Series{}, fmt.Errorf("load readings for meter %d: %w", meterID, err)
	}
	return NewSeries(meterID, rng, readings), nil
}
