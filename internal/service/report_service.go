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
	"energytrack/internal/obs"
	"energytrack/internal/repository"
	"energytrack/internal/timeparse"
)

// ReportInput carries the writable report fields.
type ReportInput struct {
	ID        int64
	MeterID   int64
	StartTime *time.Time
	EndTime   *time.Time
}

// ReportService persists consumption reports and runs the ad-hoc analyses.
type ReportService interface {
	Add(ctx context.Context, in ReportInput) (*domain.ElectricityReport, error)
	Update(ctx context.Context, in ReportInput) (*domain.ElectricityReport, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, filter domain.ReportFilter) ([]domain.ElectricityReport, error)
	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.ElectricityReport], error)
	DetectSurge(ctx context.Context, meterID int64, rng domain.TimeRange) (bool, error)
	Consumption(ctx context.Context, meterID int64, rng domain.TimeRange) (float64, error)
}

type reportService struct {
	reports          repository.ReportRepository
	meters           repository.MeterRepository
	aggregator       *consumption.Aggregator
	cachedAggregator *consumption.Aggregator
	detector         *consumption.SurgeDetector
	cache            *cache.Cache
	publisher        events.Publisher
	logger           *logrus.Logger
}

// NewReportService wires the consumption engine. Persisted reports aggregate
// straight from the reading store; ad-hoc queries go through the cached
// series of the reading service.
func NewReportService(
	reports repository.ReportRepository,
	meters repository.MeterRepository,
	readingStore consumption.SeriesSource,
	cachedSeries consumption.SeriesSource,
	c *cache.Cache,
	publisher events.Publisher,
	logger *logrus.Logger,
) ReportService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &reportService{
		reports:          reports,
		meters:           meters,
		aggregator:       consumption.NewAggregator(readingStore),
		cachedAggregator: consumption.NewAggregator(cachedSeries),
		detector:         consumption.NewSurgeDetector(cachedSeries),
		cache:            c,
		publisher:        publisher,
		logger:           logger,
	}
}

func (s *reportService) Add(ctx context.Context, in ReportInput) (*domain.ElectricityReport, error) {
	rng, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}
	total, err := s.aggregator.Aggregate(ctx, in.MeterID, rng)
	if err != nil {
		return nil, err
	}

	report := &domain.ElectricityReport{
		MeterID:          in.MeterID,
		StartTime:        rng.Start,
		EndTime:          rng.End,
		TotalConsumption: total,
	}
	if _, err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	s.invalidate()

	s.publish(ctx, events.RoutingReportCreated, events.ReportCreated{
		ReportID:         report.ID,
		MeterID:          report.MeterID,
		StartTime:        report.StartTime,
		EndTime:          report.EndTime,
		TotalConsumption: report.TotalConsumption,
	})
	return report, nil
}

func (s *reportService) Update(ctx context.Context, in ReportInput) (*domain.ElectricityReport, error) {
	if in.ID <= 0 {
		return nil, apperr.Newf(apperr.CodeInvalidReportID, "报表ID不能为空")
	}
	report, err := s.reports.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeReportNotFound, "报表不存在: %d", in.ID)
		}
		return nil, err
	}

	rng, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}
	total, err := s.aggregator.Aggregate(ctx, in.MeterID, rng)
	if err != nil {
		return nil, err
	}

	report.MeterID = in.MeterID
	report.StartTime = rng.Start
	report.EndTime = rng.End
	report.TotalConsumption = total
	if err := s.reports.Update(ctx, report); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeReportNotFound, "报表不存在: %d", in.ID)
		}
		return nil, err
	}
	s.invalidate()
	return report, nil
}

func (s *reportService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Newf(apperr.CodeInvalidReportID, "报表ID不能为空")
	}
	if err := s.reports.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Newf(apperr.CodeReportNotFound, "报表不存在: %d", id)
		}
		return err
	}
	s.invalidate()
	return nil
}

func (s *reportService) Search(ctx context.Context, filter domain.ReportFilter) ([]domain.ElectricityReport, error) {
	if filter.MeterID != 0 {
		if err := requireMeter(ctx, s.meters, filter.MeterID); err != nil {
			return nil, err
		}
	}
	if filter.StartTime != nil && filter.EndTime != nil && filter.StartTime.After(*filter.EndTime) {
		return nil, apperr.Newf(apperr.CodeInvalidTimeRange, "开始时间不能晚于结束时间")
	}

	key := fmt.Sprintf("meter=%d|start=%s|end=%s", filter.MeterID, optTime(filter.StartTime), optTime(filter.EndTime))
	return cache.LookupOrCompute(ctx, s.cache, nsReportsSearch, key, func(ctx context.Context) ([]domain.ElectricityReport, error) {
		reports, err := s.reports.Search(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(reports) == 0 {
			return nil, apperr.Newf(apperr.CodeNoDataFound, "未找到匹配的用电报表记录")
		}
		return reports, nil
	})
}

func (s *reportService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.ElectricityReport], error) {
	page = page.Normalize()
	return cache.LookupOrCompute(ctx, s.cache, nsReports, pageKey(page.Page, page.Limit), func(ctx context.Context) (domain.Page[domain.ElectricityReport], error) {
		reports, total, err := s.reports.List(ctx, page)
		if err != nil {
			return domain.Page[domain.ElectricityReport]{}, err
		}
		return domain.NewPage(page, reports, total), nil
	})
}

func (s *reportService) DetectSurge(ctx context.Context, meterID int64, rng domain.TimeRange) (bool, error) {
	surge, found, err := s.detector.Scan(ctx, meterID, rng)
	if err != nil || !found {
		return false, err
	}

	obs.SurgesDetectedTotal.Inc()
	s.logger.WithFields(logrus.Fields{
		"meter_id":      meterID,
		"previous_time": surge.Previous.Timestamp,
		"current_time":  surge.Current.Timestamp,
	}).Info("consumption surge detected")

	s.publish(ctx, events.RoutingSurgeDetected, events.SurgeDetected{
		MeterID:       meterID,
		PreviousValue: *surge.Previous.Value,
		PreviousTime:  surge.Previous.Timestamp,
		CurrentValue:  *surge.Current.Value,
		CurrentTime:   surge.Current.Timestamp,
		RangeStart:    rng.Start,
		RangeEnd:      rng.End,
	})
	return true, nil
}

func (s *reportService) Consumption(ctx context.Context, meterID int64, rng domain.TimeRange) (float64, error) {
	return s.cachedAggregator.Aggregate(ctx, meterID, rng)
}

func (s *reportService) validate(ctx context.Context, in ReportInput) (domain.TimeRange, error) {
	if err := requireMeter(ctx, s.meters, in.MeterID); err != nil {
		return domain.TimeRange{}, err
	}
	if in.StartTime == nil || in.EndTime == nil || in.StartTime.IsZero() || in.EndTime.IsZero() {
		return domain.TimeRange{}, apperr.Newf(apperr.CodeInvalidTimeRange, "开始时间和结束时间不能为空")
	}
	if in.StartTime.After(*in.EndTime) {
		return domain.TimeRange{}, apperr.Newf(apperr.CodeInvalidTimeRange, "开始时间不能晚于结束时间")
	}
	return domain.TimeRange{Start: *in.StartTime, End: *in.EndTime}, nil
}

func (s *reportService) invalidate() {
	s.cache.InvalidateNamespace(nsReports)
	s.cache.InvalidateNamespace(nsReportsSearch)
}

func (s *reportService) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.logger.WithError(err).WithField("routing_key", routingKey).Warn("publish event failed")
	}
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return timeparse.Format(*t)
}
