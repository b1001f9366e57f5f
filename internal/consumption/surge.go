package consumption

import (
	"context"
	"time"

	"energytrack/internal/domain"
)

const (
	SurgeWindow = time.Hour
	SurgeFactor = 3.0
)

// Surge is the first pair of readings that tripped the detector.
type Surge struct {
	Previous domain.Reading
	Current  domain.Reading
}

// FindSurge scans readings for the first index i with an earlier reading j
// inside (t_i - window, t_i) such that v_i > factor*v_j and v_j >= 0.
//
// Raw reading values are compared, not deltas between neighbours. Readings
// must be ascending by timestamp; the backward scan stops at the first
// reading outside the window.
func FindSurge(readings []domain.Reading, window time.Duration, factor float64) (Surge, bool) {
	for i := 1; i < len(readings); i++ {
		cur := readings[i]
		if cur.Value == nil {
			continue
		}
		lower := cur.Timestamp.Add(-window)
		for j := i - 1; j >= 0; j-- {
			prev := readings[j]
			if !prev.Timestamp.After(lower) {
				break
			}
			if prev.Value == nil {
				continue
			}
			if *cur.Value > factor*(*prev.Value) && *prev.Value >= 0 {
				return Surge{Previous: prev, Current: cur}, true
			}
		}
	}
	return Surge{}, false
}

// HasSurge applies FindSurge with the default window and factor.
func HasSurge(s Series) bool {
	_, ok := FindSurge(s.Readings, SurgeWindow, SurgeFactor)
	return ok
}

// SurgeDetector flags anomalous jumps in a meter's readings.
type SurgeDetector struct {
	src    SeriesSource
	window time.Duration
	factor float64
}

func NewSurgeDetector(src SeriesSource) *SurgeDetector {
	return &SurgeDetector{src: src, window: SurgeWindow, factor: SurgeFactor}
}

// Scan returns the first surge in the bound, if any. Fewer than two readings
// is not an error; it simply cannot contain a surge.
func (d *SurgeDetector) Scan(ctx context.Context, meterID int64, rng domain.TimeRange) (Surge, bool, error) {
	series, err := Load(ctx, d.src, meterID, rng)
	if err != nil {
		return Surge{}, false, err
	}
	if series.Len() < 2 {
		return Surge{}, false, nil
	}
	surge, ok := FindSurge(series.Readings, d.window, d.factor)
	return surge, ok, nil
}

func (d *SurgeDetector) Detect(ctx context.Context, meterID int64, rng domain.TimeRange) (bool, error) {
	_, ok, err := d.Scan(ctx, meterID, rng)
	return ok, err
}
