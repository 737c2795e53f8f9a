package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/sensor"
	"github.com/langchou/tripgazer/internal/service"
	"github.com/langchou/tripgazer/internal/trip"
)

// 设备数据流消息类型
const (
	StreamPosition      = "position"
	StreamPositionError = "position_error"
	StreamMotion        = "motion"
)

// streamReadTimeout 设备数据流的读取超时
const streamReadTimeout = 60 * time.Second

// positionRequest 设备定位结果，timestamp 为毫秒时间戳
type positionRequest struct {
	Lat       *float64 `json:"lat" binding:"required"`
	Lng       *float64 `json:"lng" binding:"required"`
	Accuracy  float64  `json:"accuracy"`
	Speed     *float64 `json:"speed"`
	Heading   *float64 `json:"heading"`
	Timestamp int64    `json:"timestamp"`
}

func (r *positionRequest) position() sensor.Position {
	pos := sensor.Position{
		Accuracy:  r.Accuracy,
		Speed:     r.Speed,
		Heading:   r.Heading,
		Timestamp: msTime(r.Timestamp),
	}
	if r.Lat != nil {
		pos.Lat = *r.Lat
	}
	if r.Lng != nil {
		pos.Lng = *r.Lng
	}
	return pos
}

// positionErrorRequest 设备定位失败
type positionErrorRequest struct {
	Code    sensor.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// motionRequest 设备运动传感器读数
type motionRequest struct {
	Acceleration                 *sensor.Vector   `json:"acceleration"`
	AccelerationIncludingGravity *sensor.Vector   `json:"accelerationIncludingGravity"`
	RotationRate                 *sensor.Rotation `json:"rotationRate"`
	Orientation                  *sensor.Rotation `json:"orientation"`
	Timestamp                    int64            `json:"timestamp"`
}

func (r *motionRequest) motion() sensor.Motion {
	return sensor.Motion{
		Acceleration:                 r.Acceleration,
		AccelerationIncludingGravity: r.AccelerationIncludingGravity,
		RotationRate:                 r.RotationRate,
		Orientation:                  r.Orientation,
		Timestamp:                    msTime(r.Timestamp),
	}
}

// streamMessage 设备数据流消息
type streamMessage struct {
	Type     string                `json:"type"`
	Position *positionRequest      `json:"position,omitempty"`
	Error    *positionErrorRequest `json:"error,omitempty"`
	Motion   *motionRequest        `json:"motion,omitempty"`
}

func msTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now()
	}
	return time.UnixMilli(ms)
}

// PushPosition 上报定位结果
func (h *Handler) PushPosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})
		return
	}

	if err := h.tripService.PushPosition(c.Param("id"), req.position()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// PushPositionError 上报定位失败
func (h *Handler) PushPositionError(c *gin.Context) {
	var req positionErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.tripService.PushPositionError(c.Param("id"), req.Code, req.Message); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// PushMotion 上报运动传感器读数
func (h *Handler) PushMotion(c *gin.Context) {
	var req motionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.tripService.PushMotion(c.Param("id"), req.motion()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// SensorStream 设备通过 WebSocket 持续上报传感器数据
func (h *Handler) SensorStream(c *gin.Context) {
	id := c.Param("id")
	// 升级前确认行程存在且为实时行程
	snap, err := h.tripService.State(id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if snap.Kind != trip.KindLive {
		h.respondError(c, service.ErrUnsupported)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade sensor stream", zap.Error(err))
		return
	}

	go h.readStream(id, conn)
}

// readStream 读取设备数据流直到连接关闭或行程销毁
func (h *Handler) readStream(id string, conn *websocket.Conn) {
	logger := h.logger.With(zap.String("trip_id", id))
	defer conn.Close()

	for {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Sensor stream closed normally")
			} else {
				logger.Warn("Sensor stream read error", zap.Error(err))
			}
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("Failed to parse sensor message",
				zap.String("message", string(message)),
				zap.Error(err))
			continue
		}

		if err := h.handleStreamMessage(id, &msg); err != nil {
			if errors.Is(err, service.ErrTripNotFound) || errors.Is(err, service.ErrUnsupported) {
				logger.Info("Sensor stream stopped", zap.Error(err))
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
					time.Now().Add(time.Second))
				return
			}
			logger.Warn("Invalid sensor message", zap.String("type", msg.Type), zap.Error(err))
		}
	}
}

var errEmptyStreamMessage = errors.New("missing payload")

func (h *Handler) handleStreamMessage(id string, msg *streamMessage) error {
	switch msg.Type {
	case StreamPosition:
		if msg.Position == nil || msg.Position.Lat == nil || msg.Position.Lng == nil {
			return errEmptyStreamMessage
		}
		return h.tripService.PushPosition(id, msg.Position.position())
	case StreamPositionError:
		if msg.Error == nil {
			return errEmptyStreamMessage
		}
		return h.tripService.PushPositionError(id, msg.Error.Code, msg.Error.Message)
	case StreamMotion:
		if msg.Motion == nil {
			return errEmptyStreamMessage
		}
		return h.tripService.PushMotion(id, msg.Motion.motion())
	default:
		h.logger.Debug("Unknown sensor message type", zap.String("type", msg.Type))
		return nil
	}
}
