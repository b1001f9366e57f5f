package http

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"energytrack/internal/apperr"
	"energytrack/internal/domain"
	"energytrack/internal/storage"
	"energytrack/internal/timeparse"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Code      apperr.Code `json:"code"`
	Msg       string      `json:"msg"`
	Data      any         `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{
		Code:      apperr.CodeSuccess,
		Msg:       apperr.CodeSuccess.Message(),
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

// writeError renders err as a failure envelope. Uncoded errors are logged and
// reported as a generic system error.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	if isClientGone(err) {
		entryFor(c, logger).WithError(err).Info("client went away")
		c.Abort()
		return
	}

	coded := apperr.From(err)
	if coded.Kind() == apperr.KindSystem {
		entryFor(c, logger).WithError(err).Error("request failed")
		coded = apperr.New(apperr.CodeSystemError)
	}
	c.JSON(statusFor(coded.Code), Envelope{
		Code:      coded.Code,
		Msg:       coded.Msg,
		Timestamp: time.Now().UnixMilli(),
	})
}

func abortWithError(c *gin.Context, logger *logrus.Logger, err error) {
	writeError(c, logger, err)
	c.Abort()
}

// statusFor maps a business code to the transport status. The envelope code
// stays authoritative.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeSuccess:
		return http.StatusOK
	case apperr.CodeInvalidToken:
		return http.StatusUnauthorized
	case apperr.CodeAccessDenied, apperr.CodeAuthFailed:
		return http.StatusForbidden
	case apperr.CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case apperr.CodeUserNotFound, apperr.CodeMeterNotFound, apperr.CodeReportNotFound, apperr.CodeNoDataFound:
		return http.StatusNotFound
	case apperr.CodeSystemError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func isClientGone(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// PageResponse is the wire shape of a paged listing.
type PageResponse[T any] struct {
	Records []T   `json:"records"`
	Total   int64 `json:"total"`
	Size    int   `json:"size"`
	Current int   `json:"current"`
	Pages   int64 `json:"pages"`
}

func pageToResponse[T, R any](p domain.Page[T], convert func(T) R) PageResponse[R] {
	return PageResponse[R]{
		Records: convertAll(p.Records, convert),
		Total:   p.Total,
		Size:    p.Size,
		Current: p.Current,
		Pages:   p.Pages(),
	}
}

type UserResponse struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Status     string `json:"status"`
	CreateTime string `json:"createTime"`
	UpdateTime string `json:"updateTime"`
}

func userToResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		Email:      u.Email,
		Phone:      u.Phone,
		Status:     u.Status,
		CreateTime: formatTime(u.CreatedAt),
		UpdateTime: formatTime(u.UpdatedAt),
	}
}

type MeterResponse struct {
	MeterID          int64   `json:"meterId"`
	MeterLocation    string  `json:"meterLocation"`
	MeterType        string  `json:"meterType"`
	MeterStatus      string  `json:"meterStatus"`
	InstallationDate *string `json:"installationDate,omitempty"`
	CreateTime       string  `json:"createTime"`
	UpdateTime       string  `json:"updateTime"`
}

func meterToResponse(m domain.Meter) MeterResponse {
	resp := MeterResponse{
		MeterID:       m.ID,
		MeterLocation: m.Location,
		MeterType:     string(m.Type),
		MeterStatus:   string(m.Status),
		CreateTime:    formatTime(m.CreatedAt),
		UpdateTime:    formatTime(m.UpdatedAt),
	}
	if m.InstallationDate != nil {
		v := formatTime(*m.InstallationDate)
		resp.InstallationDate = &v
	}
	return resp
}

type ReadingResponse struct {
	ReadingID    int64    `json:"readingId"`
	MeterID      int64    `json:"meterId"`
	ReadingValue *float64 `json:"readingValue"`
	ReadingTime  string   `json:"readingTime"`
	CreateTime   string   `json:"createTime"`
	UpdateTime   string   `json:"updateTime"`
}

func readingToResponse(r domain.Reading) ReadingResponse {
	return ReadingResponse{
		ReadingID:    r.ID,
		MeterID:      r.MeterID,
		ReadingValue: r.Value,
		ReadingTime:  formatTime(r.Timestamp),
		CreateTime:   formatTime(r.CreatedAt),
		UpdateTime:   formatTime(r.UpdatedAt),
	}
}

type ReportResponse struct {
	ReportID         int64   `json:"reportId"`
	MeterID          int64   `json:"meterId"`
	StartTime        string  `json:"startTime"`
	EndTime          string  `json:"endTime"`
	TotalConsumption float64 `json:"totalConsumption"`
	CreateTime       string  `json:"createTime"`
	UpdateTime       string  `json:"updateTime"`
}

func reportToResponse(r domain.ElectricityReport) ReportResponse {
	return ReportResponse{
		ReportID:         r.ID,
		MeterID:          r.MeterID,
		StartTime:        formatTime(r.StartTime),
		EndTime:          formatTime(r.EndTime),
		TotalConsumption: r.TotalConsumption,
		CreateTime:       formatTime(r.CreatedAt),
		UpdateTime:       formatTime(r.UpdatedAt),
	}
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"lastModified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	resp := StorageObjectResponse{
		Key:  obj.Key,
		Size: obj.Size,
	}
	if obj.LastModified != nil && !obj.LastModified.IsZero() {
		v := obj.LastModified.Format(time.RFC3339)
		resp.LastModified = &v
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timeparse.Format(t)
}

func convertAll[T, R any](items []T, convert func(T) R) []R {
	out := make([]R, len(items))
	for i := range items {
		out[i] = convert(items[i])
	}
	return out
}
