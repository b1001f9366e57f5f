package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energytrack/internal/apperr"
	"energytrack/internal/auth"
	"energytrack/internal/cache"
	"energytrack/internal/domain"
	"energytrack/internal/repository"
	"energytrack/internal/repository/sqlite"
)

type published struct {
	routingKey string
	payload    any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{routingKey: routingKey, payload: payload})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.routingKey)
	}
	return out
}

type fixture struct {
	cache       *cache.Cache
	publisher   *recordingPublisher
	users       UserService
	meters      MeterService
	readings    ReadingService
	reports     ReportService
	meterRepo   repository.MeterRepository
	readingRepo repository.ReadingRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	meterRepo := sqlite.NewMeterRepository(db)
	readingRepo := sqlite.NewReadingRepository(db)
	reportRepo := sqlite.NewReportRepository(db)
	require.NoError(t, sqlite.InitAll(context.Background(), userRepo, meterRepo, readingRepo, reportRepo))

	codec, err := auth.NewTokenCodec("service-test-secret", time.Hour)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := cache.New(time.Minute)
	pub := &recordingPublisher{}
	readings := NewReadingService(readingRepo, meterRepo, c, pub, nil, logger)
	return &fixture{
		cache:       c,
		publisher:   pub,
		users:       NewUserService(userRepo, codec),
		meters:      NewMeterService(meterRepo, c),
		readings:    readings,
		reports:     NewReportService(reportRepo, meterRepo, readingRepo, readings, c, pub, logger),
		meterRepo:   meterRepo,
		readingRepo: readingRepo,
	}
}

func (f *fixture) meter(t *testing.T) *domain.Meter {
	t.Helper()
	m, err := f.meters.Add(context.Background(), MeterInput{Location: "Building A", Type: "SMART", Status: "NORMAL"})
	require.NoError(t, err)
	return m
}

func (f *fixture) reading(t *testing.T, meterID int64, at time.Time, v float64) *domain.Reading {
	t.Helper()
	r, err := f.readings.Add(context.Background(), ReadingInput{MeterID: meterID, Value: domain.FloatPtr(v), Time: &at})
	require.NoError(t, err)
	return r
}

func requireCode(t *testing.T, err error, code apperr.Code) {
	t.Helper()
	require.Error(t, err)
	var coded *apperr.Error
	require.True(t, errors.As(err, &coded), "expected coded error, got %v", err)
	assert.Equal(t, code, coded.Code, coded.Msg)
}

// base is safely in the past so reading times never fail the future check.
func base() time.Time {
	return time.Now().Add(-48 * time.Hour).Truncate(time.Second)
}
