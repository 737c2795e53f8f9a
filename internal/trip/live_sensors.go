package trip

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/metrics"
	"github.com/langchou/tripgazer/internal/sensor"
	"github.com/langchou/tripgazer/internal/session"
)

// startSamplerLocked 启动传感器采样循环，调用方持有 mu
func (t *LiveTrip) startSamplerLocked() {
	if t.motion != nil {
		sub, err := t.motion.Start()
		if err != nil {
			t.logger.Warn("Motion sensors unavailable, sampling GPS only", zap.Error(err))
		} else {
			t.motionSub = sub
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.samplerStop = stop
	t.samplerDone = done

	go t.runSampler(stop, done)

	t.logger.Debug("Sensor sampling started",
		zap.String("server_trip_id", t.tripID),
		zap.Duration("interval", t.sampleInterval),
		zap.Int("batch_size", t.batchSize))
}

// runSampler 按固定间隔采样，尽力而为，不保证严格周期
func (t *LiveTrip) runSampler(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.capture()
		}
	}
}

// capture 记录一次采样；缓冲区满时整体取出并清空，异步上传
func (t *LiveTrip) capture() {
	var motion *sensor.Motion
	if t.motion != nil {
		if m, ok := t.motion.Latest(); ok {
			motion = &m
		}
	}

	t.mu.Lock()
	if !t.isActive || t.tripID == "" || t.destroyed {
		t.mu.Unlock()
		return
	}

	t.buffer = append(t.buffer, sensor.NewPacket(t.now(), motion, t.currentPosition))
	metrics.SamplesCaptured.Inc()

	if len(t.buffer) < t.batchSize {
		t.mu.Unlock()
		return
	}

	// 取出与清空在同一临界区内完成，上传结果不影响清空
	batch := t.buffer
	t.buffer = make([]sensor.Packet, 0, t.batchSize)
	tripID := t.tripID
	cred := t.sampleCred
	t.inflight.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.inflight.Done()
		t.sendBatch(context.Background(), batch, tripID, cred)
	}()
}

// flushBuffer 同步发送剩余的不完整批次
func (t *LiveTrip) flushBuffer(ctx context.Context, cred session.Credential) {
	t.mu.Lock()
	batch := t.buffer
	t.buffer = nil
	tripID := t.tripID
	t.mu.Unlock()

	if len(batch) == 0 || tripID == "" {
		return
	}
	t.sendBatch(ctx, batch, tripID, cred)
}

// sendBatch 上传批次，失败即丢弃，不重试
func (t *LiveTrip) sendBatch(ctx context.Context, batch []sensor.Packet, tripID string, cred session.Credential) {
	metrics.BatchSize.Observe(float64(len(batch)))

	if t.backend == nil {
		metrics.BatchesSent.WithLabelValues(metrics.ResultSkipped).Inc()
		return
	}

	reqCtx, cancel := t.scope(ctx)
	resp, err := t.backend.Predict(reqCtx, cred, carbon.PredictRequest{
		SensorDataArray: batch,
		TripID:          tripID,
		ExpectedMode:    string(t.mode),
		UserID:          t.userID,
	})
	cancel()

	if err != nil {
		metrics.BatchesSent.WithLabelValues(metrics.ResultFailure).Inc()
		t.logger.Warn("Sensor batch dropped",
			zap.String("server_trip_id", tripID),
			zap.Int("samples", len(batch)),
			zap.Error(err))
		return
	}
	metrics.BatchesSent.WithLabelValues(metrics.ResultSuccess).Inc()

	if resp == nil || !resp.Success || resp.Prediction == nil {
		return
	}

	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	p := *resp.Prediction
	t.lastPrediction = &p
	t.reportMismatchLocked(&p)
	t.mu.Unlock()
	t.flush()
}
