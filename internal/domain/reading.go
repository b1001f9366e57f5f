package domain

import "time"

// Reading is a single value reported by a meter. Value is nil when the meter
// delivered no usable figure.
type Reading struct {
	ID        int64
	MeterID   int64
	Value     *float64
	Timestamp time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeRange is an inclusive [Start, End] bound.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the inclusive bound.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// FloatPtr is a small helper for building readings in code.
func FloatPtr(v float64) *float64 {
	return &v
}
