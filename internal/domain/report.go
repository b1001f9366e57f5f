package domain

import "time"

// ElectricityReport persists the consumption of one meter over a period.
type ElectricityReport struct {
	ID               int64
	MeterID          int64
	StartTime        time.Time
	EndTime          time.Time
	TotalConsumption float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReportFilter narrows a report search. Zero values are ignored.
type ReportFilter struct {
	MeterID   int64
	StartTime *time.Time
	EndTime   *time.Time
}
