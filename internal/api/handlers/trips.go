package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/service"
	"github.com/langchou/tripgazer/internal/trip"
)

type createTripRequest struct {
	Kind          trip.Kind  `json:"kind" binding:"required"`
	TransportMode modes.Mode `json:"transportMode" binding:"required"`
	UserID        string     `json:"userId"`
}

type fieldRequest struct {
	Value any `json:"value"`
}

// respondResult 行程操作结果，失败的操作仍返回 200，原因在 errors 中
func respondResult(c *gin.Context, res service.Result) {
	c.JSON(http.StatusOK, gin.H{
		"ok":   res.OK,
		"data": res.State,
	})
}

// ListTrips 当前托管的行程
func (h *Handler) ListTrips(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.tripService.List()})
}

// CreateTrip 创建行程
func (h *Handler) CreateTrip(c *gin.Context) {
	var req createTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind and transportMode are required"})
		return
	}
	if req.Kind != trip.KindLive && req.Kind != trip.KindManual {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be live or manual"})
		return
	}

	snap, err := h.tripService.Create(c.Request.Context(), req.Kind, req.TransportMode, req.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": snap})
}

// GetTrip 行程快照
func (h *Handler) GetTrip(c *gin.Context) {
	snap, err := h.tripService.State(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// GetTripSummary 行程摘要
func (h *Handler) GetTripSummary(c *gin.Context) {
	summary, err := h.tripService.Summary(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// GetTripForm 手动行程表单配置
func (h *Handler) GetTripForm(c *gin.Context) {
	form, err := h.tripService.FormConfig(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": form})
}

// UpdateTrip 合并行程数据
func (h *Handler) UpdateTrip(c *gin.Context) {
	var patch modes.Data
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := h.tripService.Update(c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, res)
}

// UpdateTripField 更新单个表单字段
func (h *Handler) UpdateTripField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	res, err := h.tripService.UpdateField(c.Param("id"), c.Param("field"), req.Value)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, res)
}

// StartTrip 开始行程
func (h *Handler) StartTrip(c *gin.Context) {
	h.runAction(c, h.tripService.Start)
}

// EndTrip 结束行程
func (h *Handler) EndTrip(c *gin.Context) {
	h.runAction(c, h.tripService.End)
}

// CalculateTrip 计算排放
func (h *Handler) CalculateTrip(c *gin.Context) {
	h.runAction(c, h.tripService.Calculate)
}

// SaveTrip 保存行程
func (h *Handler) SaveTrip(c *gin.Context) {
	h.runAction(c, h.tripService.Save)
}

func (h *Handler) runAction(c *gin.Context, action func(ctx context.Context, id string) (service.Result, error)) {
	res, err := action(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, res)
}

// ResetTrip 重置行程
func (h *Handler) ResetTrip(c *gin.Context) {
	snap, err := h.tripService.Reset(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

// DeleteTrip 销毁行程
func (h *Handler) DeleteTrip(c *gin.Context) {
	if err := h.tripService.Destroy(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CarMakes 汽车品牌
func (h *Handler) CarMakes(c *gin.Context) {
	makes, err := h.tripService.CarMakes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": makes})
}

// CarModels 指定品牌的车型
func (h *Handler) CarModels(c *gin.Context) {
	models, err := h.tripService.CarModels(c.Request.Context(), c.Param("id"), c.Query("make"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": models})
}

// SearchAirports 机场搜索
func (h *Handler) SearchAirports(c *gin.Context) {
	airports, err := h.tripService.SearchAirports(c.Request.Context(), c.Param("id"), c.Query("query"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": airports})
}
