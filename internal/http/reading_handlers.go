package http

import (
	"github.com/gin-gonic/gin"

	"energytrack/internal/apperr"
	"energytrack/internal/service"
	"energytrack/internal/timeparse"
)

type readingRequest struct {
	MeterID      int64    `json:"meterId"`
	ReadingID    int64    `json:"readingId"`
	ReadingValue *float64 `json:"readingValue"`
	ReadingTime  *string  `json:"readingTime"`
}

func (r readingRequest) input() (service.ReadingInput, error) {
	at, err := optionalTime(r.ReadingTime, apperr.CodeInvalidReadingTime)
	if err != nil {
		return service.ReadingInput{}, err
	}
	return service.ReadingInput{
		ID:      r.ReadingID,
		MeterID: r.MeterID,
		Value:   r.ReadingValue,
		Time:    at,
	}, nil
}

type archiveRequest struct {
	MeterID   int64  `json:"meterId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type ArchiveResponse struct {
	Location string `json:"location"`
}

func (h *Handler) addReading(c *gin.Context) {
	var req readingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(c, err)
		return
	}
	reading, err := h.readings.Add(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, readingToResponse(*reading))
}

func (h *Handler) updateReading(c *gin.Context) {
	var req readingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.fail(c, err)
		return
	}
	reading, err := h.readings.Update(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, readingToResponse(*reading))
}

func (h *Handler) deleteReading(c *gin.Context) {
	id, err := idValue(c.Param("readingId"), "readingId")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.readings.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) readingSeries(c *gin.Context) {
	meterID, rng, err := rangeQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	readings, err := h.readings.Series(c.Request.Context(), meterID, rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, convertAll(readings, readingToResponse))
}

func (h *Handler) listReadings(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	readings, err := h.readings.List(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, pageToResponse(readings, readingToResponse))
}

func (h *Handler) maxReading(c *gin.Context) {
	meterID, err := idValue(c.Query("meterId"), "meterId")
	if err != nil {
		h.fail(c, err)
		return
	}
	max, err := h.readings.MaxValue(c.Request.Context(), meterID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, max)
}

func (h *Handler) archiveReadings(c *gin.Context) {
	var req archiveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rng, err := timeparse.ParseRange(req.StartTime, req.EndTime)
	if err != nil {
		h.fail(c, err)
		return
	}
	location, err := h.readings.Archive(c.Request.Context(), req.MeterID, rng)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, ArchiveResponse{Location: location})
}

func (h *Handler) listArchives(c *gin.Context) {
	meterID, err := idValue(c.Query("meterId"), "meterId")
	if err != nil {
		h.fail(c, err)
		return
	}
	objects, err := h.readings.Archives(c.Request.Context(), meterID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, convertAll(objects, objectToResponse))
}
