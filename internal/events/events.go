package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RoutingReadingAccepted = "meter.reading.accepted"
	RoutingReportCreated   = "electricity.report.created"
	RoutingSurgeDetected   = "meter.surge.detected"

	DefaultExchange = "energytrack.events"
)

// Publisher emits domain events. Delivery is best effort; callers log and
// continue on failure.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// Envelope wraps every published payload.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func NewEnvelope(routingKey string, payload any) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type ReadingAccepted struct {
	ReadingID   int64     `json:"reading_id"`
	MeterID     int64     `json:"meter_id"`
	Value       float64   `json:"value"`
	ReadingTime time.Time `json:"reading_time"`
}

type ReportCreated struct {
	ReportID         int64     `json:"report_id"`
	MeterID          int64     `json:"meter_id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	TotalConsumption float64   `json:"total_consumption"`
}

type SurgeDetected struct {
	MeterID       int64     `json:"meter_id"`
	PreviousValue float64   `json:"previous_value"`
	PreviousTime  time.Time `json:"previous_time"`
	CurrentValue  float64   `json:"current_value"`
	CurrentTime   time.Time `json:"current_time"`
	RangeStart    time.Time `json:"range_start"`
	RangeEnd      time.Time `json:"range_end"`
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
