package trip

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/metrics"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/session"
	"github.com/langchou/tripgazer/internal/state"
)

// base 两种行程共用的生命周期逻辑
// mu 保护所有可变状态，网络请求与事件回调期间不持有
type base struct {
	id       string
	mode     modes.Mode
	userID   string
	kind     Kind
	config   *modes.Config
	backend  Backend
	logger   *zap.Logger
	listener Listener
	now      func() time.Time
	machine  *state.Machine

	// ctx 随行程销毁而取消
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	data        modes.Data
	emission    *float64
	isActive    bool
	isCompleted bool
	loading     bool
	errors      map[string]string
	plugins     map[string]Plugin
	destroyed   bool
	pending     []Event

	// afterValidate 在基础校验之后补充错误，持有 mu 时调用
	afterValidate func(errs map[string]string)

	// emitMu 保证事件按发出顺序投递
	emitMu sync.Mutex
}

func newBase(mode modes.Mode, userID string, kind Kind, opts *Options) (*base, error) {
	cfg, err := modes.Get(mode)
	if err != nil {
		return nil, err
	}
	opts.setDefaults()

	b := &base{
		id:       opts.ID,
		mode:     mode,
		userID:   userID,
		kind:     kind,
		config:   cfg,
		backend:  opts.Backend,
		logger:   opts.Logger.With(zap.String("trip_id", opts.ID), zap.String("mode", string(mode))),
		listener: opts.Listener,
		now:      opts.Now,
		errors:   make(map[string]string),
		plugins:  make(map[string]Plugin),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.data = b.initializeData()

	// 状态机回调在持有 mu 时触发
	b.machine = state.NewMachine(opts.ID, kind, func(_ string, from, to string) {
		b.queue(Event{Type: EventStateChange, Payload: map[string]any{"phase": to, "from": from}})
	})

	return b, nil
}

// ID 行程 ID
func (b *base) ID() string { return b.id }

// Mode 出行方式
func (b *base) Mode() modes.Mode { return b.mode }

// Kind 行程类型
func (b *base) Kind() Kind { return b.kind }

// Config 出行方式配置
func (b *base) Config() *modes.Config { return b.config }

// StartTrip 由具体行程类型实现
func (b *base) StartTrip(context.Context, session.Credential) bool {
	panic(&NotImplementedError{Method: "startTrip"})
}

// EndTrip 由具体行程类型实现
func (b *base) EndTrip(context.Context, session.Credential) bool {
	panic(&NotImplementedError{Method: "endTrip"})
}

// initializeData 按字段定义生成默认数据
func (b *base) initializeData() modes.Data {
	return b.config.DefaultData()
}

// queue 记录待发送事件，调用方持有 mu
func (b *base) queue(ev Event) {
	ev.TripID = b.id
	ev.Mode = b.mode
	b.pending = append(b.pending, ev)
}

func (b *base) queueError(title, detail string, errs map[string]string) {
	b.logger.Debug("Trip error reported", zap.String("title", title), zap.String("detail", detail))
	b.queue(Event{Type: EventError, Title: title, Detail: detail, Errors: errs})
}

// flush 在锁外把待发送事件交给 listener
func (b *base) flush() {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	for {
		b.mu.Lock()
		events := b.pending
		b.pending = nil
		b.mu.Unlock()

		if len(events) == 0 {
			return
		}
		if b.listener == nil {
			continue
		}
		for _, ev := range events {
			b.listener(ev)
		}
	}
}

// scope 返回同时受调用方与行程生命周期约束的 context
func (b *base) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(b.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Validate 校验当前数据，每次计算前都会重新执行
func (b *base) Validate() bool {
	b.mu.Lock()
	ok := b.validateLocked()
	b.mu.Unlock()
	return ok
}

func (b *base) validateLocked() bool {
	errs := make(map[string]string)
	v := b.config.Validation

	for _, key := range v.Required {
		if !b.data.Truthy(key) {
			errs[key] = key + " is required"
		}
	}

	for _, rule := range v.Custom {
		switch {
		case rule.CheckData != nil:
			if msg := rule.CheckData(b.data); msg != "" {
				errs[rule.Key] = msg
			}
		case rule.Check != nil && b.data.Has(rule.Key):
			if msg := rule.Check(b.data[rule.Key]); msg != "" {
				errs[rule.Key] = msg
			}
		}
	}

	if b.afterValidate != nil {
		b.afterValidate(errs)
	}

	b.errors = errs
	return len(errs) == 0
}

// setLoading 调用方持有 mu
func (b *base) setLoading(loading bool) {
	b.loading = loading
	b.queue(Event{Type: EventStateChange, Payload: map[string]any{"loading": loading}})
}

// CalculateEmissions 校验后请求排放计算
// 成功时 emission = emissionKg / 1000，并写入 data.emissionKg
func (b *base) CalculateEmissions(ctx context.Context, cred session.Credential) bool {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return false
	}

	if !b.validateLocked() {
		verr := &ValidationError{Errors: copyErrors(b.errors)}
		b.queueError("Validation failed", verr.Detail(), verr.Errors)
		b.mu.Unlock()
		b.flush()
		metrics.EmissionsRequests.WithLabelValues(string(b.mode), metrics.ResultSkipped).Inc()
		return false
	}

	b.setLoading(true)
	b.machine.Fire(state.EventCalculate)
	payload := b.config.EmissionsPayload(b.data.Clone())
	b.mu.Unlock()
	b.flush()

	ok := b.requestEmissions(ctx, cred, payload)
	metrics.EmissionsRequests.WithLabelValues(string(b.mode), metrics.Result(ok)).Inc()
	return ok
}

func (b *base) requestEmissions(ctx context.Context, cred session.Credential, payload map[string]any) bool {
	defer func() {
		b.mu.Lock()
		b.setLoading(false)
		b.mu.Unlock()
		b.flush()
	}()

	if b.backend == nil {
		b.mu.Lock()
		b.machine.Fire(state.EventCalculateFailed)
		b.queueError("Failed to calculate emissions", "No backend configured", nil)
		b.mu.Unlock()
		return false
	}

	reqCtx, cancel := b.scope(ctx)
	kg, err := b.backend.CalculateEmissions(reqCtx, cred, b.config.API.Emissions, b.config.API.Method, payload)
	cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		b.logger.Debug("Ignoring emissions result for destroyed trip")
		return false
	}

	if err != nil {
		b.logger.Error("Emission calculation failed", zap.Error(err))
		b.machine.Fire(state.EventCalculateFailed)
		b.queueError("Failed to calculate emissions", carbon.Detail(err), nil)
		return false
	}

	emission := kg / 1000
	b.emission = &emission
	b.data["emissionKg"] = kg
	b.machine.Fire(state.EventCalculated)
	b.queue(Event{Type: EventDataUpdate, Payload: map[string]any{"emission": emission, "emissionKg": kg}})
	return true
}

// SaveTrip 保存行程，需要凭证且已计算排放
func (b *base) SaveTrip(ctx context.Context, cred session.Credential) bool {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return false
	}

	if cred.Empty() {
		b.queueError("Authentication required", "You must be logged in to save trips", nil)
		b.mu.Unlock()
		b.flush()
		metrics.TripSaves.WithLabelValues(string(b.mode), metrics.ResultSkipped).Inc()
		return false
	}

	if b.emission == nil {
		b.queueError("No data to save", "Please calculate emissions first", nil)
		b.mu.Unlock()
		b.flush()
		metrics.TripSaves.WithLabelValues(string(b.mode), metrics.ResultSkipped).Inc()
		return false
	}

	b.setLoading(true)
	b.machine.Fire(state.EventSave)

	data := b.data.Clone()
	if b.config.StampSaveDate {
		data["date"] = b.now().UTC().Format(time.RFC3339)
	}
	payload := b.config.SavePayload(data)
	b.mu.Unlock()
	b.flush()

	ok := b.requestSave(ctx, cred, payload)
	metrics.TripSaves.WithLabelValues(string(b.mode), metrics.Result(ok)).Inc()
	return ok
}

func (b *base) requestSave(ctx context.Context, cred session.Credential, payload map[string]any) bool {
	defer func() {
		b.mu.Lock()
		b.setLoading(false)
		b.mu.Unlock()
		b.flush()
	}()

	if b.backend == nil {
		b.mu.Lock()
		b.machine.Fire(state.EventSaveFailed)
		b.queueError("Failed to save trip", "No backend configured", nil)
		b.mu.Unlock()
		return false
	}

	reqCtx, cancel := b.scope(ctx)
	err := b.backend.LogEmission(reqCtx, cred, payload)
	cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		b.logger.Debug("Ignoring save result for destroyed trip")
		return false
	}

	if err != nil {
		b.logger.Error("Save trip failed", zap.Error(err))
		b.machine.Fire(state.EventSaveFailed)
		b.queueError("Failed to save trip", carbon.Detail(err), nil)
		return false
	}

	b.isCompleted = true
	b.machine.Fire(state.EventSaved)
	b.queue(Event{Type: EventStateChange, Payload: map[string]any{"completed": true}})
	return true
}

// LoadPlugins 按配置声明顺序加载并初始化插件，缺失的插件只记录警告
func (b *base) LoadPlugins(ctx context.Context, available map[string]Plugin) {
	for _, id := range b.config.Plugins {
		p, ok := available[id]
		if !ok || p == nil {
			b.logger.Warn("Plugin not available", zap.String("plugin", id))
			continue
		}

		b.mu.Lock()
		if b.destroyed {
			b.mu.Unlock()
			return
		}
		b.plugins[id] = p
		b.mu.Unlock()

		if initer, ok := p.(Initializer); ok {
			initCtx, cancel := b.scope(ctx)
			err := initer.Init(initCtx, handle{b: b})
			cancel()
			if err != nil {
				b.logger.Warn("Plugin init failed", zap.String("plugin", id), zap.Error(err))
			}
		}
	}
}

// Plugin 获取已加载的插件
func (b *base) Plugin(id string) (Plugin, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.plugins[id]
	return p, ok
}

// UpdateData 合并数据并通知
func (b *base) UpdateData(patch modes.Data) {
	b.mu.Lock()
	b.mergeLocked(patch)
	b.queue(Event{Type: EventDataUpdate, Payload: b.data.Clone()})
	b.mu.Unlock()
	b.flush()
}

func (b *base) mergeLocked(patch modes.Data) {
	for k, v := range patch {
		b.data[k] = v
	}
}

// Reset 恢复初始数据与标志，不销毁行程
func (b *base) Reset() {
	b.mu.Lock()
	b.resetLocked()
	b.queue(Event{Type: EventStateChange, Payload: b.statePayloadLocked()})
	b.mu.Unlock()
	b.flush()
}

func (b *base) resetLocked() {
	b.isActive = false
	b.isCompleted = false
	b.data = b.initializeData()
	b.emission = nil
	b.loading = false
	b.errors = make(map[string]string)
	b.machine.Fire(state.EventReset)
}

// Destroy 释放插件资源，之后到达的请求结果会被忽略
func (b *base) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.cancel()

	plugins := make([]Plugin, 0, len(b.plugins))
	for _, id := range b.config.Plugins {
		if p, ok := b.plugins[id]; ok {
			plugins = append(plugins, p)
		}
	}
	b.plugins = make(map[string]Plugin)
	b.mu.Unlock()

	for _, p := range plugins {
		p.Destroy()
	}
}

// snapshotLocked 调用方持有 mu
func (b *base) snapshotLocked() Snapshot {
	var emission *float64
	if b.emission != nil {
		e := *b.emission
		emission = &e
	}

	plugins := make([]string, 0, len(b.plugins))
	for _, id := range b.config.Plugins {
		if _, ok := b.plugins[id]; ok {
			plugins = append(plugins, id)
		}
	}

	return Snapshot{
		ID:            b.id,
		TransportMode: b.mode,
		Kind:          b.kind,
		UserID:        b.userID,
		Phase:         b.machine.Current(),
		IsActive:      b.isActive,
		IsCompleted:   b.isCompleted,
		Loading:       b.loading,
		Data:          b.data.Clone(),
		Emission:      emission,
		Errors:        copyErrors(b.errors),
		Plugins:       plugins,
	}
}

// statePayloadLocked 完整状态的事件内容
func (b *base) statePayloadLocked() map[string]any {
	var emission any
	if b.emission != nil {
		emission = *b.emission
	}
	return map[string]any{
		"transportMode": string(b.mode),
		"isActive":      b.isActive,
		"isCompleted":   b.isCompleted,
		"data":          b.data.Clone(),
		"emission":      emission,
		"loading":       b.loading,
		"errors":        copyErrors(b.errors),
		"phase":         b.machine.Current(),
	}
}

func copyErrors(errs map[string]string) map[string]string {
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		out[k] = v
	}
	return out
}
