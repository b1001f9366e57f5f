package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energytrack/internal/apperr"
	"energytrack/internal/domain"
	"energytrack/internal/events"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestAddReportComputesConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meter(t)
	b := base()

	f.reading(t, m.ID, b, 100)
	f.reading(t, m.ID, b.Add(time.Hour), 140)
	f.reading(t, m.ID, b.Add(2*time.Hour), 175.5)

	report, err := f.reports.Add(ctx, ReportInput{MeterID: m.ID, StartTime: timePtr(b), EndTime: timePtr(b.Add(2 * time.Hour))})
	require.NoError(t, err)
	assert.NotZero(t, report.ID)
	assert.InDelta(t, 75.5, report.TotalConsumption, 1e-9)
	assert.Contains(t, f.publisher.keys(), events.RoutingReportCreated)
}

func TestAddReportValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meter(t)
	b := base()
	f.reading(t, m.ID, b, 1)

	_, err := f.reports.Add(ctx, ReportInput{MeterID: m.ID + 7, StartTime: timePtr(b), EndTime: timePtr(b)})
	requireCode(t, err, apperr.CodeInvalidMeterID)

	_, err = f.reports.Add(ctx, ReportInput{MeterID: m.ID, EndTime: timePtr(b)})
	requireCode(t, err, apperr.CodeInvalidTimeRange)

	_, err = f.reports.Add(ctx, ReportInput{MeterID: m.ID, StartTime: timePtr(b.Add(time.Hour)), EndTime: timePtr(b)})
	requireCode(t, err, apperr.CodeInvalidTimeRange)

	_, err = f.reports.Add(ctx, ReportInput{MeterID: m.ID, StartTime: timePtr(b.Add(-time.Hour)), EndTime: timePtr(b.Add(time.Hour))})
	requireCode(t, err, apperr.CodeInsufficientReadings)
}

func TestUpdateDeleteReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meter(t)
	b := base()
	f.reading(t, m.ID, b, 10)
	f.reading(t, m.ID, b.Add(time.Hour), 30)
	f.reading(t, m.ID, b.Add(2*time.Hour), 90)

	report, err := f.reports.Add(ctx, ReportInput{MeterID: m.ID, StartTime: timePtr(b), EndTime: timePtr(b.Add(time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, 20.0, report.TotalConsumption)

	updated, err := f.reports.Update(ctx, ReportInput{ID: report.ID, MeterID: m.ID, StartTime: timePtr(b), EndTime: timePtr(b.Add(2 * time.Hour))})
	require.NoError(t, err)
	assert.Equal(t, 80.0, updated.TotalConsumption)

	_, err = f.reports.Update(ctx, ReportInput{ID: report.ID + 10, MeterID: m.ID, StartTime: timePtr(b), EndTime: timePtr(b)})
	requireCode(t, err, apperr.CodeReportNotFound)

	requireCode(t, f.reports.Delete(ctx, 0), apperr.CodeInvalidReportID)
	require.NoError(t, f.reports.Delete(ctx, report.ID))
	requireCode(t, f.reports.Delete(ctx, report.ID), apperr.CodeReportNotFound)
}

func TestSearchReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meter(t)
	b := base()
	f.reading(t, m.ID, b, 10)
	f.reading(t, m.ID, b.Add(time.Hour), 30)

	_, err := f.reports.Add(ctx, ReportInput{MeterID: m.ID, StartTime: timePtr(b), EndTime: timePtr(b.Add(time.Hour))})
	require.NoError(t, err)

	found, err := f.reports.Search(ctx, domain.ReportFilter{MeterID: m.ID, StartTime: timePtr(b.Add(-time.Minute)), EndTime: timePtr(b.Add(2 * time.Hour))})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = f.reports.Search(ctx, domain.ReportFilter{MeterID: m.ID, StartTime: timePtr(b.Add(time.Minute))})
	requireCode(t, err, apperr.CodeNoDataFound)

	_, err = f.reports.Search(ctx, domain.ReportFilter{MeterID: m.ID + 3})
	requireCode(t, err, apperr.CodeInvalidMeterID)

	_, err = f.reports.Search(ctx, domain.ReportFilter{StartTime: timePtr(b.Add(time.Hour)), EndTime: timePtr(b)})
	requireCode(t, err, apperr.CodeInvalidTimeRange)

	page, err := f.reports.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestDetectSurgePublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meter(t)
	b := base()

	f.reading(t, m.ID, b, 10)
	f.reading(t, m.ID, b.Add(30*time.Minute), 31)
	rng := domain.TimeRange{Start: b.Add(-time.Minute), End: b.Add(time.Hour)}

	surge, err := f.reports.DetectSurge(ctx, m.ID, rng)
	require.NoError(t, err)
	assert.True(t, surge)
	assert.Contains(t, f.publisher.keys(), events.RoutingSurgeDetected)

	total, err := f.reports.Consumption(ctx, m.ID, rng)
	require.NoError(t, err)
	assert.Equal(t, 21.0, total)
}

func TestDetectSurgeQuietSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meter(t)
	b := base()

	f.reading(t, m.ID, b, 10)
	f.reading(t, m.ID, b.Add(2*time.Hour), 100)
	rng := domain.TimeRange{Start: b.Add(-time.Minute), End: b.Add(3 * time.Hour)}

	surge, err := f.reports.DetectSurge(ctx, m.ID, rng)
	require.NoError(t, err)
	assert.False(t, surge)

	single := domain.TimeRange{Start: b.Add(-time.Minute), End: b.Add(time.Minute)}
	surge, err = f.reports.DetectSurge(ctx, m.ID, single)
	require.NoError(t, err)
	assert.False(t, surge)

	_, err = f.reports.DetectSurge(ctx, m.ID+4, rng)
	requireCode(t, err, apperr.CodeInvalidMeterID)
	assert.NotContains(t, f.publisher.keys(), events.RoutingSurgeDetected)
}
