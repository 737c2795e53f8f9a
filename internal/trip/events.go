package trip

import (
	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/sensor"
)

// EventType 行程事件类型
type EventType string

const (
	EventStateChange    EventType = "state_change"
	EventDataUpdate     EventType = "data_update"
	EventError          EventType = "error"
	EventLocationUpdate EventType = "location_update"
	EventDistanceUpdate EventType = "distance_update"
	EventModeMismatch   EventType = "mode_mismatch"
)

// Event 行程向外发出的通知
type Event struct {
	Type   EventType  `json:"type"`
	TripID string     `json:"trip_id"`
	Mode   modes.Mode `json:"mode"`

	// Payload state_change 与 data_update 的内容
	Payload map[string]any `json:"payload,omitempty"`

	// error
	Title  string            `json:"title,omitempty"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`

	// location_update / distance_update
	Position *sensor.Position `json:"position,omitempty"`
	Distance *float64         `json:"distance,omitempty"`

	// mode_mismatch
	Prediction *carbon.Prediction `json:"prediction,omitempty"`
}

// Listener 事件接收者
// 回调在行程锁之外按发出顺序同步调用，回调内不要再同步调用同一行程的方法
type Listener func(Event)
