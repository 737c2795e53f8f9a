package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/service"
	"github.com/langchou/tripgazer/internal/session"
	"github.com/langchou/tripgazer/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger      *zap.Logger
	tripService *service.TripService
	store       *session.Store
	wsHub       *ws.Hub
	upgrader    websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	tripService *service.TripService,
	store *session.Store,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:      logger,
		tripService: tripService,
		store:       store,
		wsHub:       wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// HandleWebSocket 行程事件推送
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"trips":      len(h.tripService.List()),
		"logged_in":  h.store.LoggedIn(),
		"ws_clients": h.wsHub.ClientCount(),
	})
}

// respondError 把服务层错误映射为 HTTP 状态
func (h *Handler) respondError(c *gin.Context, err error) {
	var unknown *modes.UnknownModeError
	var missing *modes.MissingPluginsError

	switch {
	case errors.Is(err, service.ErrTripNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Trip not found"})
	case errors.Is(err, service.ErrUnsupported), errors.Is(err, service.ErrPluginUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrArchiveDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &unknown), errors.As(err, &missing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
