package sensor

import (
	"fmt"
	"time"
)

// ErrorCode 定位错误类型
type ErrorCode int

const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
	Unknown             ErrorCode = 0
)

// GeolocationError 定位失败
type GeolocationError struct {
	Code ErrorCode
	// Cause 原始错误描述，只用于日志
	Cause string
}

// NewGeolocationError 按错误码创建，未知错误码归为 Unknown
func NewGeolocationError(code ErrorCode, cause string) *GeolocationError {
	switch code {
	case PermissionDenied, PositionUnavailable, Timeout:
	default:
		code = Unknown
	}
	return &GeolocationError{Code: code, Cause: cause}
}

// Message 面向用户的固定描述
func (e *GeolocationError) Message() string {
	switch e.Code {
	case PermissionDenied:
		return "Location access denied. Please enable GPS permissions."
	case PositionUnavailable:
		return "Location information unavailable. Please check GPS signal."
	case Timeout:
		return "Location request timed out. Please try again."
	default:
		return "An unknown GPS error occurred."
	}
}

func (e *GeolocationError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("geolocation error %d: %s", e.Code, e.Cause)
	}
	return fmt.Sprintf("geolocation error %d", e.Code)
}

// Position 定位结果
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WatchOptions 持续定位参数
type WatchOptions struct {
	HighAccuracy bool
	// Timeout 单次定位的最长等待时间，0 表示不限
	Timeout time.Duration
	// MaximumAge 可接受的定位结果最大时效，超时的定位被丢弃，0 表示不限
	MaximumAge time.Duration
}

// Subscription 可取消的订阅，Cancel 可重复调用
type Subscription interface {
	Cancel()
}

// PositionSource 定位数据源
type PositionSource interface {
	Watch(opts WatchOptions, onPosition func(Position), onError func(*GeolocationError)) (Subscription, error)
}

// MotionSource 运动/姿态数据源
type MotionSource interface {
	Start() (Subscription, error)
	Latest() (Motion, bool)
}

// Vector 三轴数据
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Rotation 旋转角/角速度
type Rotation struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// Motion 最近一次运动/姿态读数
type Motion struct {
	Acceleration                 *Vector   `json:"acceleration,omitempty"`
	AccelerationIncludingGravity *Vector   `json:"accelerationIncludingGravity,omitempty"`
	RotationRate                 *Rotation `json:"rotationRate,omitempty"`
	Orientation                  *Rotation `json:"orientation,omitempty"`
	Timestamp                    time.Time `json:"timestamp"`
}

// Fix 采样时的 GPS 位置
type Fix struct {
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Accuracy float64  `json:"accuracy"`
	Speed    *float64 `json:"speed"`
	Heading  *float64 `json:"heading"`
}

// Packet 单个传感器采样
type Packet struct {
	Timestamp                    int64     `json:"timestamp"`
	Acceleration                 *Vector   `json:"acceleration"`
	AccelerationIncludingGravity *Vector   `json:"accelerationIncludingGravity"`
	RotationRate                 *Rotation `json:"rotationRate"`
	Orientation                  *Rotation `json:"orientation"`
	GPS                          *Fix      `json:"gps"`
}

// NewPacket 组合最近的运动读数与位置
func NewPacket(at time.Time, motion *Motion, pos *Position) Packet {
	p := Packet{Timestamp: at.UnixMilli()}
	if motion != nil {
		p.Acceleration = motion.Acceleration
		p.AccelerationIncludingGravity = motion.AccelerationIncludingGravity
		p.RotationRate = motion.RotationRate
		p.Orientation = motion.Orientation
	}
	if pos != nil {
		p.GPS = &Fix{
			Lat:      pos.Lat,
			Lng:      pos.Lng,
			Accuracy: pos.Accuracy,
			Speed:    pos.Speed,
			Heading:  pos.Heading,
		}
	}
	return p
}
