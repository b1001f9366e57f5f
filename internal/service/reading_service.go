package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"energytrack/internal/apperr"
	"energytrack/internal/cache"
	"energytrack/internal/consumption"
	"energytrack/internal/domain"
	"energytrack/internal/events"
	"energytrack/internal/repository"
	"energytrack/internal/storage"
	"energytrack/internal/timeparse"
)

// ReadingInput carries a reading to store. Value and Time are pointers so a
// missing field can be told apart from a zero value.
type ReadingInput struct {
	ID      int64
	MeterID int64
	Value   *float64
	Time    *time.Time
}

// ReadingService manages meter readings and exposes cached series. It
// implements consumption.SeriesSource.
type ReadingService interface {
	consumption.SeriesSource
	Add(ctx context.Context, in ReadingInput) (*domain.Reading, error)
	Update(ctx context.Context, in ReadingInput) (*domain.Reading, error)
	Delete(ctx context.Context, id int64) error
	Series(ctx context.Context, meterID int64, rng domain.TimeRange) ([]domain.Reading, error)
	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Reading], error)
	MaxValue(ctx context.Context, meterID int64) (float64, error)
	Archive(ctx context.Context, meterID int64, rng domain.TimeRange) (string, error)
	Archives(ctx context.Context, meterID int64) ([]storage.ObjectInfo, error)
}

type readingService struct {
	readings  repository.ReadingRepository
	meters    repository.MeterRepository
	cache     *cache.Cache
	publisher events.Publisher
	archiver  *storage.Archiver
	logger    *logrus.Logger
	now       func() time.Time
}

func NewReadingService(
	readings repository.ReadingRepository,
	meters repository.MeterRepository,
	c *cache.Cache,
	publisher events.Publisher,
	archiver *storage.Archiver,
	logger *logrus.Logger,
) ReadingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &readingService{
		readings:  readings,
		meters:    meters,
		cache:     c,
		publisher: publisher,
		archiver:  archiver,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *readingService) Add(ctx context.Context, in ReadingInput) (*domain.Reading, error) {
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	reading := &domain.Reading{
		MeterID:   in.MeterID,
		Value:     in.Value,
		Timestamp: *in.Time,
	}
	if _, err := s.readings.Create(ctx, reading); err != nil {
		return nil, err
	}
	s.cache.InvalidateNamespace(nsMeterReadings)

	s.publish(ctx, events.RoutingReadingAccepted, events.ReadingAccepted{
		ReadingID:   reading.ID,
		MeterID:     reading.MeterID,
		Value:       *reading.Value,
		ReadingTime: reading.Timestamp,
	})
	return reading, nil
}

func (s *readingService) Update(ctx context.Context, in ReadingInput) (*domain.Reading, error) {
	if in.ID <= 0 {
		return nil, apperr.Newf(apperr.CodeParamValid, "读数ID不能为空")
	}
	reading, err := s.readings.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeNoDataFound, "读数不存在")
		}
		return nil, err
	}
	if in.MeterID == 0 {
		in.MeterID = reading.MeterID
	}
	if in.Value == nil {
		in.Value = reading.Value
	}
	if in.Time == nil {
		t := reading.Timestamp
		in.Time = &t
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}

	reading.MeterID = in.MeterID
	reading.Value = in.Value
	reading.Timestamp = *in.Time
	if err := s.readings.Update(ctx, reading); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeNoDataFound, "读数不存在")
		}
		return nil, err
	}
	s.cache.InvalidateNamespace(nsMeterReadings)
	return reading, nil
}

func (s *readingService) Delete(ctx context.Context, id int64) error {
	if err := s.readings.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.CodeFailedDelete)
		}
		return err
	}
	s.cache.InvalidateNamespace(nsMeterReadings)
	return nil
}

// Series returns the readings of an existing meter inside rng, ascending.
// Results are cached per (meter, start, end).
func (s *readingService) Series(ctx context.Context, meterID int64, rng domain.TimeRange) ([]domain.Reading, error) {
	if err := requireMeter(ctx, s.meters, meterID); err != nil {
		return nil, err
	}
	if rng.Start.IsZero() || rng.End.IsZero() {
		return nil, apperr.New(apperr.CodeMissingTimeRange)
	}
	if rng.Start.After(rng.End) {
		return nil, apperr.New(apperr.CodeInvalidTimeRange)
	}

	key := fmt.Sprintf("%d:%s:%s", meterID, timeparse.Format(rng.Start), timeparse.Format(rng.End))
	return cache.LookupOrCompute(ctx, s.cache, nsMeterReadings, key, func(ctx context.Context) ([]domain.Reading, error) {
		return s.readings.ListByMeterBetween(ctx, meterID, rng.Start, rng.End)
	})
}

func (s *readingService) ListByMeterBetween(ctx context.Context, meterID int64, start, end time.Time) ([]domain.Reading, error) {
	return s.Series(ctx, meterID, domain.TimeRange{Start: start, End: end})
}

func (s *readingService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Reading], error) {
	page = page.Normalize()
	readings, total, err := s.readings.List(ctx, page)
	if err != nil {
		return domain.Page[domain.Reading]{}, err
	}
	return domain.NewPage(page, readings, total), nil
}

func (s *readingService) MaxValue(ctx context.Context, meterID int64) (float64, error) {
	if err := requireMeter(ctx, s.meters, meterID); err != nil {
		return 0, err
	}
	max, err := s.readings.MaxValue(ctx, meterID)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return defaultMaxReading, nil
	}
	return *max, nil
}

func (s *readingService) Archive(ctx context.Context, meterID int64, rng domain.TimeRange) (string, error) {
	if !s.archiver.Enabled() {
		return "", apperr.Newf(apperr.CodeSystemError, "对象存储未配置")
	}
	readings, err := s.Series(ctx, meterID, rng)
	if err != nil {
		return "", err
	}
	series := consumption.NewSeries(meterID, rng, readings)
	location, err := s.archiver.Archive(ctx, meterID, rng, series.Readings)
	if err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{
		"meter_id": meterID,
		"readings": series.Len(),
		"location": location,
	}).Info("archived reading series")
	return location, nil
}

func (s *readingService) Archives(ctx context.Context, meterID int64) ([]storage.ObjectInfo, error) {
	if !s.archiver.Enabled() {
		return nil, apperr.Newf(apperr.CodeSystemError, "对象存储未配置")
	}
	if err := requireMeter(ctx, s.meters, meterID); err != nil {
		return nil, err
	}
	return s.archiver.List(ctx, meterID)
}

func (s *readingService) validate(ctx context.Context, in ReadingInput) error {
	if err := requireMeter(ctx, s.meters, in.MeterID); err != nil {
		return err
	}
	if in.Value == nil || *in.Value < 0 {
		return apperr.Newf(apperr.CodeInvalidReadingValue, "读数值必须为非负数")
	}
	if in.Time == nil || in.Time.IsZero() {
		return apperr.Newf(apperr.CodeInvalidReadingTime, "读数时间不能为空")
	}
	if in.Time.After(s.now()) {
		return apperr.Newf(apperr.CodeInvalidReadingTime, "读数时间不能晚于当前时间")
	}
	return nil
}

func (s *readingService) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.logger.WithError(err).WithField("routing_key", routingKey).Warn("publish event failed")
	}
}
