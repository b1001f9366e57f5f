package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"energytrack/internal/apperr"
	"energytrack/internal/domain"
	"energytrack/internal/service"
)

type reportRequest struct {
	ReportID  int64   `json:"reportId"`
	MeterID   int64   `json:"meterId"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
}

func (r reportRequest) input() (service.ReportInput, error) {
	start, err := optionalTime(r.StartTime, apperr.CodeInvalidTimeRange)
	if err != nil {
		return service.ReportInput{}, err
	}
	end, err := optionalTime(r.EndTime, apperr.CodeInvalidTimeRange)
	if err != nil {
		return service.ReportInput{}, err
	}
	return service.ReportInput{
		ID:        r.ReportID,
		MeterID:   r.MeterID,
		StartTime: start,
		EndTime:   end,
	}, nil
}

func (h *Handler) addReport(c *gin.Context) {
	var req reportRequest
	if !h.bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(c, err)
		return
	}
	report, err := h.reports.Add(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, reportToResponse(*report))
}

func (h *Handler) updateReport(c *gin.Context) {
	var req reportRequest
	if !h.bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(c, err)
		return
	}
	report, err := h.reports.Update(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, reportToResponse(*report))
}

func (h *Handler) deleteReport(c *gin.Context) {
	var req reportRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), req.ReportID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "删除成功")
}

func (h *Handler) searchReports(c *gin.Context) {
	meterID, err := idValue(c.Query("meterId"), "meterId")
	if err != nil {
		h.fail(c, err)
		return
	}
	start, err := optionalQueryTime(c, "startTime")
	if err != nil {
		h.fail(c, err)
		return
	}
	end, err := optionalQueryTime(c, "endTime")
	if err != nil {
		h.fail(c, err)
		return
	}
	reports, err := h.reports.Search(c.Request.Context(), domain.ReportFilter{
		MeterID:   meterID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, convertAll(reports, reportToResponse))
}

func (h *Handler) listReports(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	reports, err := h.reports.List(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, pageToResponse(reports, reportToResponse))
}

func (h *Handler) detectSurge(c *gin.Context) {
	meterID, rng, err := rangeQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	surge, err := h.reports.DetectSurge(c.Request.Context(), meterID, rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, surge)
}

func (h *Handler) consumption(c *gin.Context) {
	meterID, rng, err := rangeQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	total, err := h.reports.Consumption(c.Request.Context(), meterID, rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, total)
}

func optionalQueryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	return optionalTime(&raw, apperr.CodeInvalidTimeRange)
}
