package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/repository"
	"github.com/langchou/tripgazer/internal/service"
)

// ListHistory 当前用户的归档行程
func (h *Handler) ListHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage

	// 只列出当前会话用户的记录
	logs, err := h.tripService.History(c.Request.Context(), h.store.UserID(), perPage, offset)
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			h.respondError(c, err)
			return
		}
		h.logger.Error("Failed to list trip history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list trip history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": logs,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
		},
	})
}

// GetHistoryEntry 单条归档行程
func (h *Handler) GetHistoryEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid trip log ID"})
		return
	}

	log, err := h.tripService.HistoryEntry(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Trip log not found"})
		case errors.Is(err, service.ErrArchiveDisabled):
			h.respondError(c, err)
		default:
			h.logger.Error("Failed to get trip log", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get trip log"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": log})
}
