package trip

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/geo"
	"github.com/langchou/tripgazer/internal/metrics"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/sensor"
	"github.com/langchou/tripgazer/internal/session"
	"github.com/langchou/tripgazer/internal/state"
)

// LiveTrip 由定位数据驱动的行程
// 结束时自动计算排放并保存
type LiveTrip struct {
	*base

	positions          sensor.PositionSource
	motion             sensor.MotionSource
	gpsTimeout         time.Duration
	sampleInterval     time.Duration
	batchSize          int
	mismatchConfidence float64

	// 以下字段由 base.mu 保护
	path            []geo.Point
	pathTimes       []time.Time
	currentPosition *sensor.Position
	startedAt       time.Time
	endedAt         time.Time
	tripID          string
	lastPrediction  *carbon.Prediction
	buffer          []sensor.Packet
	sampleCred      session.Credential
	generation      int
	// starting 服务端登记期间为 true，防止并发开始
	starting bool

	watch       sensor.Subscription
	motionSub   sensor.Subscription
	samplerStop chan struct{}
	samplerDone chan struct{}

	// inflight 进行中的批次上传
	inflight sync.WaitGroup
}

// NewLiveTrip 创建实时行程
func NewLiveTrip(mode modes.Mode, userID string, opts Options) (*LiveTrip, error) {
	b, err := newBase(mode, userID, KindLive, &opts)
	if err != nil {
		return nil, err
	}

	return &LiveTrip{
		base:               b,
		positions:          opts.Positions,
		motion:             opts.Motion,
		gpsTimeout:         opts.GPSTimeout,
		sampleInterval:     opts.SampleInterval,
		batchSize:          opts.BatchSize,
		mismatchConfidence: opts.MismatchConfidence,
	}, nil
}

// StartTrip 开始定位追踪
// 有凭证时先在服务端登记行程，登记失败只降级为纯 GPS 模式
func (t *LiveTrip) StartTrip(ctx context.Context, cred session.Credential) bool {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return false
	}
	if t.isActive || t.starting {
		t.mu.Unlock()
		t.logger.Warn("Trip is already active")
		return false
	}
	if !t.config.GPS.Enabled {
		t.queueError("GPS not supported", fmt.Sprintf("%s does not support GPS tracking", t.mode), nil)
		t.mu.Unlock()
		t.flush()
		return false
	}
	if t.positions == nil {
		t.queueError("GPS Error", "Geolocation is not supported on this device", nil)
		t.mu.Unlock()
		t.flush()
		return false
	}
	t.starting = true
	t.mu.Unlock()

	tripID := t.registerServerTrip(ctx, cred)

	t.mu.Lock()
	t.starting = false
	if t.destroyed {
		t.mu.Unlock()
		return false
	}

	// 上一次行程的结果不带入新行程
	t.machine.Fire(state.EventReset)
	t.isCompleted = false
	t.errors = make(map[string]string)
	delete(t.data, "emissionKg")
	t.endedAt = time.Time{}

	t.path = nil
	t.pathTimes = nil
	t.currentPosition = nil
	t.data["distance"] = float64(0)
	t.emission = nil
	t.buffer = make([]sensor.Packet, 0, t.batchSize)
	t.lastPrediction = nil
	t.tripID = tripID
	t.sampleCred = cred
	t.startedAt = t.now()
	t.generation++
	gen := t.generation

	t.isActive = true
	t.machine.Fire(state.EventStart)
	t.queue(Event{Type: EventStateChange, Payload: map[string]any{
		"isActive": true,
		"tracking": true,
		"message":  fmt.Sprintf("%s trip started - GPS tracking active", t.config.Name),
	}})
	t.mu.Unlock()
	t.flush()

	opts := sensor.WatchOptions{
		HighAccuracy: t.config.GPS.HighAccuracy(),
		Timeout:      t.gpsTimeout,
		MaximumAge:   0,
	}
	watch, err := t.positions.Watch(opts,
		func(p sensor.Position) { t.handlePosition(gen, p) },
		func(e *sensor.GeolocationError) { t.handlePositionError(gen, e) },
	)
	if err != nil {
		t.logger.Error("Failed to start GPS tracking", zap.Error(err))
		t.mu.Lock()
		t.isActive = false
		t.generation++
		t.machine.Fire(state.EventReset)
		t.queueError("GPS Error", err.Error(), nil)
		t.mu.Unlock()
		t.flush()
		return false
	}

	t.mu.Lock()
	if t.generation != gen || !t.isActive {
		t.mu.Unlock()
		watch.Cancel()
		return false
	}
	t.watch = watch
	if t.tripID != "" {
		t.startSamplerLocked()
	}
	t.mu.Unlock()

	t.logger.Info("Live trip started",
		zap.String("server_trip_id", tripID),
		zap.Bool("high_accuracy", opts.HighAccuracy))
	return true
}

// registerServerTrip 登记服务端行程，失败返回空 ID
func (t *LiveTrip) registerServerTrip(ctx context.Context, cred session.Credential) string {
	if cred.Empty() || t.backend == nil {
		return ""
	}

	reqCtx, cancel := t.scope(ctx)
	defer cancel()

	tripID, err := t.backend.StartTrip(reqCtx, cred, carbon.StartTripRequest{
		TransportMode: string(t.mode),
		UserID:        t.userID,
	})
	if err != nil {
		t.logger.Warn("Failed to register trip, continuing GPS-only", zap.Error(err))
		return ""
	}
	return tripID
}

// handlePosition 追加轨迹点并重新计算距离
func (t *LiveTrip) handlePosition(gen int, pos sensor.Position) {
	t.mu.Lock()
	if t.generation != gen || !t.isActive || t.destroyed {
		t.mu.Unlock()
		return
	}

	if pos.Timestamp.IsZero() {
		pos.Timestamp = t.now()
	}
	p := pos
	t.currentPosition = &p
	t.path = append(t.path, geo.Point{pos.Lat, pos.Lng})
	t.pathTimes = append(t.pathTimes, pos.Timestamp)

	km := geo.PathKm(t.path)
	t.data["distance"] = km

	t.queue(Event{Type: EventDataUpdate, Payload: map[string]any{"distance": km}})
	t.queue(Event{Type: EventLocationUpdate, Position: &p})
	t.queue(Event{Type: EventDistanceUpdate, Distance: &km})
	t.mu.Unlock()
	t.flush()
}

// handlePositionError 上报定位错误，不停止追踪
func (t *LiveTrip) handlePositionError(gen int, gerr *sensor.GeolocationError) {
	t.mu.Lock()
	if t.generation != gen || t.destroyed {
		t.mu.Unlock()
		return
	}
	t.logger.Warn("GPS error", zap.Int("code", int(gerr.Code)), zap.String("cause", gerr.Cause))
	t.queueError("GPS Error", gerr.Message(), nil)
	t.mu.Unlock()
	t.flush()
}

// EndTrip 停止追踪，计算排放并自动保存
func (t *LiveTrip) EndTrip(ctx context.Context, cred session.Credential) bool {
	t.mu.Lock()
	if !t.isActive || t.destroyed {
		t.mu.Unlock()
		t.logger.Warn("No active trip to end")
		return false
	}
	t.isActive = false
	t.endedAt = t.now()
	t.machine.Fire(state.EventEnd)
	release := t.detachLocked()
	t.mu.Unlock()
	t.flush()

	// 停止采样后发送剩余批次
	release()
	t.inflight.Wait()
	t.flushBuffer(ctx, cred)

	t.mu.Lock()
	km := geo.PathKm(t.path)
	t.data["distance"] = km
	tripID := t.tripID
	duration := t.endedAt.Sub(t.startedAt)
	var final *carbon.Prediction
	if t.lastPrediction != nil {
		p := *t.lastPrediction
		final = &p
	}
	t.mu.Unlock()

	if tripID != "" && t.backend != nil {
		reqCtx, cancel := t.scope(ctx)
		err := t.backend.EndTrip(reqCtx, cred, carbon.EndTripRequest{
			TripID:          tripID,
			DistanceKm:      km,
			DurationSeconds: int64(math.Round(duration.Seconds())),
			FinalPrediction: final,
		})
		cancel()
		if err != nil {
			t.logger.Warn("Failed to notify trip end", zap.String("server_trip_id", tripID), zap.Error(err))
		}
	}

	t.mu.Lock()
	t.queue(Event{Type: EventStateChange, Payload: map[string]any{
		"isActive": false,
		"tracking": false,
		"message":  fmt.Sprintf("%s trip ended - Distance: %.2f km", t.config.Name, km),
	}})
	t.mu.Unlock()
	t.flush()

	t.logger.Info("Live trip ended",
		zap.Float64("distance_km", km),
		zap.Duration("duration", duration))

	if !t.CalculateEmissions(ctx, cred) {
		return false
	}

	saved := t.SaveTrip(ctx, cred)
	if saved {
		t.mu.Lock()
		t.queue(Event{Type: EventStateChange, Payload: map[string]any{
			"autoSaved": true,
			"message":   fmt.Sprintf("%s trip automatically saved to history!", t.config.Name),
		}})
		t.mu.Unlock()
		t.flush()
	}
	return saved
}

// detachLocked 解除定位与采样订阅，返回的函数需在锁外调用
func (t *LiveTrip) detachLocked() func() {
	t.generation++

	watch := t.watch
	motionSub := t.motionSub
	stop := t.samplerStop
	done := t.samplerDone
	t.watch = nil
	t.motionSub = nil
	t.samplerStop = nil
	t.samplerDone = nil

	return func() {
		if watch != nil {
			watch.Cancel()
		}
		if stop != nil {
			close(stop)
			<-done
		}
		if motionSub != nil {
			motionSub.Cancel()
		}
	}
}

// Reset 停止追踪并恢复初始状态
func (t *LiveTrip) Reset() {
	t.mu.Lock()
	release := t.detachLocked()
	t.resetLocked()
	t.path = nil
	t.pathTimes = nil
	t.currentPosition = nil
	t.buffer = nil
	t.tripID = ""
	t.lastPrediction = nil
	t.startedAt = time.Time{}
	t.endedAt = time.Time{}
	t.queue(Event{Type: EventStateChange, Payload: t.statePayloadLocked()})
	t.mu.Unlock()

	release()
	t.flush()
}

// Destroy 释放定位订阅、采样循环与插件
func (t *LiveTrip) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.isActive = false
	release := t.detachLocked()
	t.path = nil
	t.pathTimes = nil
	t.buffer = nil
	t.mu.Unlock()

	release()
	t.base.Destroy()
}

// State 状态快照
func (t *LiveTrip) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snapshotLocked()
	live := &LiveState{
		TripID:     t.tripID,
		Path:       make([][2]float64, len(t.path)),
		BufferSize: len(t.buffer),
	}
	for i, p := range t.path {
		live.Path[i] = [2]float64(p)
	}
	if t.currentPosition != nil {
		p := *t.currentPosition
		live.CurrentPosition = &p
	}
	if t.lastPrediction != nil {
		p := *t.lastPrediction
		live.LastPrediction = &p
	}
	if !t.startedAt.IsZero() {
		at := t.startedAt
		live.StartedAt = &at
	}
	if !t.endedAt.IsZero() {
		at := t.endedAt
		live.EndedAt = &at
	}
	snap.Live = live
	return snap
}

// LiveSummary 实时行程摘要
type LiveSummary struct {
	Snapshot
	TotalPoints  int        `json:"totalPoints"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	AverageSpeed float64    `json:"averageSpeed"`
}

// Summary 行程摘要，平均速度单位 km/h
func (t *LiveTrip) Summary() LiveSummary {
	snap := t.State()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := LiveSummary{
		Snapshot:     snap,
		TotalPoints:  len(t.path),
		AverageSpeed: t.averageSpeedLocked(),
	}
	if len(t.pathTimes) > 0 {
		start := t.pathTimes[0]
		s.StartTime = &start
	}
	if !t.endedAt.IsZero() {
		end := t.endedAt
		s.EndTime = &end
	}
	return s
}

func (t *LiveTrip) averageSpeedLocked() float64 {
	distance := t.data.Number("distance")
	if len(t.path) < 2 || distance == 0 {
		return 0
	}

	start := t.pathTimes[0]
	end := t.pathTimes[len(t.pathTimes)-1]
	if t.isActive {
		end = t.now()
	}

	hours := end.Sub(start).Hours()
	if hours <= 0 {
		return 0
	}
	return math.Round(distance/hours*10) / 10
}

// reportMismatchLocked 预测出行方式与所选方式不一致时发出提示，调用方持有 mu
func (t *LiveTrip) reportMismatchLocked(pred *carbon.Prediction) {
	if pred.Mode == string(t.mode) || pred.Confidence <= t.mismatchConfidence {
		return
	}

	metrics.ModeMismatches.WithLabelValues(string(t.mode), pred.Mode).Inc()
	t.logger.Info("Transport mode mismatch detected",
		zap.String("predicted", pred.Mode),
		zap.Float64("confidence", pred.Confidence))

	p := *pred
	t.queue(Event{Type: EventModeMismatch, Prediction: &p, Payload: map[string]any{
		"message": fmt.Sprintf("Looks like you might be travelling by %s (%.0f%% confidence)", pred.Mode, pred.Confidence*100),
	}})
}
