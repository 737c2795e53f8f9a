package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/session"
)

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

// GetSession 当前会话状态
func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"loggedIn": h.store.LoggedIn(),
			"userId":   h.store.UserID(),
		},
	})
}

// Login 保存访问令牌
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if err := h.store.Login(req.Token); err != nil {
		if errors.Is(err, session.ErrNoCredential) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
			return
		}
		h.logger.Error("Failed to save session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"loggedIn": true,
			"userId":   h.store.UserID(),
		},
	})
}

// Logout 清除访问令牌
func (h *Handler) Logout(c *gin.Context) {
	if err := h.store.Logout(); err != nil {
		h.logger.Error("Failed to clear session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"loggedIn": false}})
}
