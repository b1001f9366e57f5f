package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"energytrack/internal/apperr"
	"energytrack/internal/cache"
	"energytrack/internal/domain"
	"energytrack/internal/repository"
)

// MeterInput carries the writable meter fields.
type MeterInput struct {
	ID       int64
	Location string
	Type     string
	Status   string
}

// MeterService manages the meter inventory.
type MeterService interface {
	Add(ctx context.Context, in MeterInput) (*domain.Meter, error)
	Update(ctx context.Context, in MeterInput) (*domain.Meter, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, filter domain.MeterFilter) ([]domain.Meter, error)
	List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Meter], error)
	Exists(ctx context.Context, id int64) (bool, error)
}

type meterService struct {
	meters repository.MeterRepository
	cache  *cache.Cache
}

func NewMeterService(meters repository.MeterRepository, c *cache.Cache) MeterService {
	return &meterService{meters: meters, cache: c}
}

func (s *meterService) Add(ctx context.Context, in MeterInput) (*domain.Meter, error) {
	meterType, status, err := validateMeterKinds(in.Type, in.Status, true)
	if err != nil {
		return nil, err
	}

	meter := &domain.Meter{
		Location: strings.TrimSpace(in.Location),
		Type:     meterType,
		Status:   status,
	}
	if _, err := s.meters.Create(ctx, meter); err != nil {
		return nil, err
	}
	s.invalidate()
	return meter, nil
}

func (s *meterService) Update(ctx context.Context, in MeterInput) (*domain.Meter, error) {
	if in.ID <= 0 {
		return nil, apperr.Newf(apperr.CodeInvalidMeterID, "电表ID不能为空")
	}
	meter, err := s.meters.GetByID(ctx, in.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.CodeMeterNotFound)
		}
		return nil, err
	}

	meterType, status, err := validateMeterKinds(in.Type, in.Status, false)
	if err != nil {
		return nil, err
	}
	if loc := strings.TrimSpace(in.Location); loc != "" {
		meter.Location = loc
	}
	if meterType != "" {
		meter.Type = meterType
	}
	if status != "" {
		meter.Status = status
	}

	if err := s.meters.Update(ctx, meter); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.CodeMeterNotFound)
		}
		return nil, err
	}
	s.invalidate()
	return meter, nil
}

// Delete removes the meter together with its readings and reports.
func (s *meterService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Newf(apperr.CodeInvalidMeterID, "电表ID不能为空")
	}
	if err := s.meters.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.New(apperr.CodeFailedDelete)
		}
		return err
	}
	s.invalidate()
	s.cache.InvalidateNamespace(nsMeterReadings)
	s.cache.InvalidateNamespace(nsReports)
	s.cache.InvalidateNamespace(nsReportsSearch)
	return nil
}

func (s *meterService) Search(ctx context.Context, filter domain.MeterFilter) ([]domain.Meter, error) {
	if _, _, err := validateMeterKinds(string(filter.Type), string(filter.Status), false); err != nil {
		return nil, err
	}
	filter.Location = strings.TrimSpace(filter.Location)
	key := fmt.Sprintf("location=%s|type=%s|status=%s", filter.Location, filter.Type, filter.Status)

	return cache.LookupOrCompute(ctx, s.cache, nsMetersSearch, key, func(ctx context.Context) ([]domain.Meter, error) {
		meters, err := s.meters.Search(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(meters) == 0 {
			return nil, apperr.Newf(apperr.CodeNoDataFound, "未找到匹配的电表记录")
		}
		return meters, nil
	})
}

func (s *meterService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Meter], error) {
	page = page.Normalize()
	return cache.LookupOrCompute(ctx, s.cache, nsMeters, pageKey(page.Page, page.Limit), func(ctx context.Context) (domain.Page[domain.Meter], error) {
		meters, total, err := s.meters.List(ctx, page)
		if err != nil {
			return domain.Page[domain.Meter]{}, err
		}
		return domain.NewPage(page, meters, total), nil
	})
}

func (s *meterService) Exists(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return cache.LookupOrCompute(ctx, s.cache, nsMeters, fmt.Sprintf("check:%d", id), func(ctx context.Context) (bool, error) {
		return meterExists(ctx, s.meters, id)
	})
}

func (s *meterService) invalidate() {
	s.cache.InvalidateNamespace(nsMeters)
	s.cache.InvalidateNamespace(nsMetersSearch)
}

// validateMeterKinds checks type and status against the dictionaries. When
// required is false an empty value is accepted and returned as-is.
func validateMeterKinds(rawType, rawStatus string, required bool) (domain.MeterType, domain.MeterStatus, error) {
	meterType := domain.MeterType(strings.TrimSpace(rawType))
	status := domain.MeterStatus(strings.TrimSpace(rawStatus))

	if meterType != "" || required {
		if !meterType.Valid() {
			return "", "", apperr.Newf(apperr.CodeInvalidMeterType, "无效的电表类型: %s", meterType)
		}
	}
	if status != "" || required {
		if !status.Valid() {
			return "", "", apperr.Newf(apperr.CodeInvalidMeterStatus, "无效的电表状态: %s", status)
		}
	}
	return meterType, status, nil
}

func meterExists(ctx context.Context, meters repository.MeterRepository, id int64) (bool, error) {
	if _, err := meters.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// requireMeter fails with CodeInvalidMeterID unless the meter exists.
func requireMeter(ctx context.Context, meters repository.MeterRepository, id int64) error {
	if id <= 0 {
		return apperr.Newf(apperr.CodeInvalidMeterID, "电表ID不能为空")
	}
	ok, err := meterExists(ctx, meters, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Newf(apperr.CodeInvalidMeterID, "电表ID不存在: %d", id)
	}
	return nil
}
