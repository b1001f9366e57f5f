package http

import (
	"github.com/gin-gonic/gin"

	"energytrack/internal/apperr"
	"energytrack/internal/domain"
	"energytrack/internal/service"
)

type meterRequest struct {
	MeterID       int64  `json:"meterId"`
	MeterLocation string `json:"meterLocation"`
	MeterType     string `json:"meterType"`
	MeterStatus   string `json:"meterStatus"`
}

func (r meterRequest) input() service.MeterInput {
	return service.MeterInput{
		ID:       r.MeterID,
		Location: r.MeterLocation,
		Type:     r.MeterType,
		Status:   r.MeterStatus,
	}
}

func (h *Handler) addMeter(c *gin.Context) {
	var req meterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	meter, err := h.meters.Add(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, meterToResponse(*meter))
}

func (h *Handler) updateMeter(c *gin.Context) {
	var req meterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	meter, err := h.meters.Update(c.Request.Context(), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, meterToResponse(*meter))
}

func (h *Handler) deleteMeter(c *gin.Context) {
	var req meterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.meters.Delete(c.Request.Context(), req.MeterID); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "删除成功")
}

func (h *Handler) searchMeters(c *gin.Context) {
	filter := domain.MeterFilter{
		Location: c.Query("meterLocation"),
		Type:     domain.MeterType(c.Query("meterType")),
		Status:   domain.MeterStatus(c.Query("meterStatus")),
	}
	meters, err := h.meters.Search(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, convertAll(meters, meterToResponse))
}

func (h *Handler) listMeters(c *gin.Context) {
	page, err := pageRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	meters, err := h.meters.List(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, pageToResponse(meters, meterToResponse))
}

func (h *Handler) checkMeter(c *gin.Context) {
	id, err := idValue(c.Param("meterId"), "meterId")
	if err != nil {
		h.fail(c, err)
		return
	}
	exists, err := h.meters.Exists(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !exists {
		h.fail(c, apperr.New(apperr.CodeMeterNotFound))
		return
	}
	ok(c, "电表存在")
}
