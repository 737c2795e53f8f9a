package trip

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/sensor"
	"github.com/langchou/tripgazer/internal/session"
	"github.com/langchou/tripgazer/internal/state"
)

// Kind 行程类型
type Kind = state.Kind

const (
	KindLive   = state.KindLive
	KindManual = state.KindManual
)

// 默认参数
const (
	DefaultSampleInterval     = 100 * time.Millisecond
	DefaultBatchSize          = 600
	DefaultMismatchConfidence = 0.7
	DefaultGPSTimeout         = 10 * time.Second
)

// Trip 行程的公共操作
// 可能失败的操作返回 bool，失败原因通过 error 事件上报
type Trip interface {
	ID() string
	Mode() modes.Mode
	Kind() Kind
	Config() *modes.Config

	StartTrip(ctx context.Context, cred session.Credential) bool
	EndTrip(ctx context.Context, cred session.Credential) bool
	Validate() bool
	CalculateEmissions(ctx context.Context, cred session.Credential) bool
	SaveTrip(ctx context.Context, cred session.Credential) bool

	LoadPlugins(ctx context.Context, available map[string]Plugin)
	Plugin(id string) (Plugin, bool)
	UpdateData(patch modes.Data)
	Reset()
	Destroy()
	State() Snapshot
}

// Backend 行程用到的后端接口
type Backend interface {
	CalculateEmissions(ctx context.Context, cred session.Credential, path, method string, payload map[string]any) (float64, error)
	LogEmission(ctx context.Context, cred session.Credential, record map[string]any) error
	StartTrip(ctx context.Context, cred session.Credential, req carbon.StartTripRequest) (string, error)
	EndTrip(ctx context.Context, cred session.Credential, req carbon.EndTripRequest) error
	Predict(ctx context.Context, cred session.Credential, req carbon.PredictRequest) (*carbon.PredictResponse, error)
}

// Options 行程构造参数
type Options struct {
	// ID 为空时自动生成
	ID       string
	Backend  Backend
	Logger   *zap.Logger
	Listener Listener
	Now      func() time.Time

	// 以下只用于实时行程
	Positions          sensor.PositionSource
	Motion             sensor.MotionSource
	GPSTimeout         time.Duration
	SampleInterval     time.Duration
	BatchSize          int
	MismatchConfidence float64
}

func (o *Options) setDefaults() {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.GPSTimeout <= 0 {
		o.GPSTimeout = DefaultGPSTimeout
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = DefaultSampleInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MismatchConfidence <= 0 {
		o.MismatchConfidence = DefaultMismatchConfidence
	}
}

// Snapshot 行程状态快照
type Snapshot struct {
	ID            string            `json:"id"`
	TransportMode modes.Mode        `json:"transportMode"`
	Kind          Kind              `json:"kind"`
	UserID        string            `json:"userId"`
	Phase         string            `json:"phase"`
	IsActive      bool              `json:"isActive"`
	IsCompleted   bool              `json:"isCompleted"`
	Loading       bool              `json:"loading"`
	Data          modes.Data        `json:"data"`
	Emission      *float64          `json:"emission"`
	Errors        map[string]string `json:"errors"`
	Plugins       []string          `json:"plugins"`

	Live   *LiveState   `json:"live,omitempty"`
	Manual *ManualState `json:"manual,omitempty"`
}

// LiveState 实时行程附加状态
type LiveState struct {
	TripID          string             `json:"tripId,omitempty"`
	Path            [][2]float64       `json:"path"`
	CurrentPosition *sensor.Position   `json:"currentPosition,omitempty"`
	BufferSize      int                `json:"bufferSize"`
	LastPrediction  *carbon.Prediction `json:"lastPrediction,omitempty"`
	StartedAt       *time.Time         `json:"startedAt,omitempty"`
	EndedAt         *time.Time         `json:"endedAt,omitempty"`
}

// ManualState 手动行程附加状态
type ManualState struct {
	FormTouched  bool              `json:"formTouched"`
	FieldErrors  map[string]string `json:"fieldErrors"`
	CanCalculate bool              `json:"canCalculate"`
	CanSave      bool              `json:"canSave"`
}
