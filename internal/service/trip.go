package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/config"
	"github.com/langchou/tripgazer/internal/metrics"
	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/plugins"
	"github.com/langchou/tripgazer/internal/sensor"
	"github.com/langchou/tripgazer/internal/session"
	"github.com/langchou/tripgazer/internal/trip"
)

var (
	ErrTripNotFound      = errors.New("trip not found")
	ErrUnsupported       = errors.New("operation not supported for this trip kind")
	ErrPluginUnavailable = errors.New("plugin not loaded for this trip")
	ErrArchiveDisabled   = errors.New("trip archive not configured")
)

// Backend 碳排放后端与参考数据
type Backend interface {
	trip.Backend
	plugins.Catalog
}

// Credentials 会话凭证来源，每次调用时读取
type Credentials interface {
	Token() session.Credential
	UserID() string
}

// Archive 已完成行程的归档
type Archive interface {
	Create(ctx context.Context, log *models.TripLog) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.TripLog, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.TripLog, error)
}

// Broadcaster 事件推送
type Broadcaster interface {
	BroadcastTripEvent(tripID string, event interface{})
}

// Result 行程操作结果
type Result struct {
	OK    bool          `json:"ok"`
	State trip.Snapshot `json:"state"`
}

// tripSession 服务托管的单个行程
type tripSession struct {
	trip      trip.Trip
	live      *trip.LiveTrip
	manual    *trip.ManualTrip
	feed      *sensor.Feed
	createdAt time.Time

	archiveMu sync.Mutex
	archived  bool
}

// TripService 行程会话服务
type TripService struct {
	cfg     *config.Config
	logger  *zap.Logger
	backend Backend
	creds   Credentials
	archive Archive     // 可为 nil
	hub     Broadcaster // 可为 nil
	now     func() time.Time

	mu          sync.RWMutex
	sessions    map[string]*tripSession
	subscribers []chan trip.Event
}

// NewTripService 创建行程服务
func NewTripService(
	cfg *config.Config,
	logger *zap.Logger,
	backend Backend,
	creds Credentials,
	archive Archive,
	hub Broadcaster,
) *TripService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TripService{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		creds:    creds,
		archive:  archive,
		hub:      hub,
		now:      time.Now,
		sessions: make(map[string]*tripSession),
	}
}

// Create 创建行程并加载插件；userID 为空时取当前会话的用户
func (s *TripService) Create(ctx context.Context, kind trip.Kind, mode modes.Mode, userID string) (trip.Snapshot, error) {
	if err := modes.ValidatePlugins(mode, plugins.Available()); err != nil {
		return trip.Snapshot{}, err
	}
	if userID == "" {
		userID = s.creds.UserID()
	}

	id := uuid.NewString()
	logger := s.logger.With(zap.String("trip_id", id), zap.String("mode", string(mode)))
	feed := sensor.NewFeed(logger)

	opts := trip.Options{
		ID:                 id,
		Backend:            s.backend,
		Logger:             logger,
		Listener:           s.onEvent,
		Now:                s.now,
		Positions:          feed,
		Motion:             feed,
		GPSTimeout:         s.cfg.GPSTimeout,
		SampleInterval:     s.cfg.SensorSampleInterval,
		BatchSize:          s.cfg.SensorBatchSize,
		MismatchConfidence: s.cfg.MismatchConfidence,
	}

	sess := &tripSession{feed: feed, createdAt: s.now()}
	switch kind {
	case trip.KindLive:
		t, err := trip.NewLiveTrip(mode, userID, opts)
		if err != nil {
			return trip.Snapshot{}, err
		}
		sess.trip, sess.live = t, t
	case trip.KindManual:
		t, err := trip.NewManualTrip(mode, userID, opts)
		if err != nil {
			return trip.Snapshot{}, err
		}
		sess.trip, sess.manual = t, t
	default:
		return trip.Snapshot{}, fmt.Errorf("unknown trip kind %q", kind)
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.ActiveTrips.Inc()

	sess.trip.LoadPlugins(ctx, plugins.Registry(s.backend, logger))

	logger.Info("Trip created", zap.String("kind", string(kind)), zap.String("user_id", userID))
	return sess.trip.State(), nil
}

func (s *TripService) get(id string) (*tripSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrTripNotFound
	}
	return sess, nil
}

// Start 开始行程
func (s *TripService) Start(ctx context.Context, id string) (Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return Result{}, err
	}
	ok := sess.trip.StartTrip(ctx, s.creds.Token())
	sess.rearm()
	return Result{OK: ok, State: sess.trip.State()}, nil
}

// End 结束行程；实时行程会自动计算并保存
func (s *TripService) End(ctx context.Context, id string) (Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return Result{}, err
	}
	ok := sess.trip.EndTrip(ctx, s.creds.Token())
	s.archiveIfCompleted(ctx, id, sess)
	return Result{OK: ok, State: sess.trip.State()}, nil
}

// Calculate 计算排放
func (s *TripService) Calculate(ctx context.Context, id string) (Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return Result{}, err
	}
	ok := sess.trip.CalculateEmissions(ctx, s.creds.Token())
	return Result{OK: ok, State: sess.trip.State()}, nil
}

// Save 保存到用户历史
func (s *TripService) Save(ctx context.Context, id string) (Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return Result{}, err
	}
	ok := sess.trip.SaveTrip(ctx, s.creds.Token())
	s.archiveIfCompleted(ctx, id, sess)
	return Result{OK: ok, State: sess.trip.State()}, nil
}

// Update 合并数据；手动行程逐字段校验
func (s *TripService) Update(id string, patch modes.Data) (Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return Result{}, err
	}
	if sess.manual != nil {
		ok := sess.manual.UpdateFields(patch)
		sess.rearm()
		return Result{OK: ok, State: sess.trip.State()}, nil
	}
	sess.trip.UpdateData(patch)
	return Result{OK: true, State: sess.trip.State()}, nil
}

// UpdateField 更新并校验单个表单字段，只用于手动行程
func (s *TripService) UpdateField(id, field string, value any) (Result, error) {
	sess, err := s.get(id)
	if err != nil {
		return Result{}, err
	}
	if sess.manual == nil {
		return Result{}, ErrUnsupported
	}
	ok := sess.manual.UpdateField(field, value)
	sess.rearm()
	return Result{OK: ok, State: sess.trip.State()}, nil
}

// Reset 恢复初始状态
func (s *TripService) Reset(id string) (trip.Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return trip.Snapshot{}, err
	}
	sess.trip.Reset()
	sess.rearm()
	return sess.trip.State(), nil
}

// rearm 行程重新开始或被编辑后，下一次完成需要重新归档
func (sess *tripSession) rearm() {
	if sess.trip.State().IsCompleted {
		return
	}
	sess.archiveMu.Lock()
	sess.archived = false
	sess.archiveMu.Unlock()
}

// Destroy 销毁行程并释放订阅
func (s *TripService) Destroy(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrTripNotFound
	}
	sess.trip.Destroy()
	metrics.ActiveTrips.Dec()
	s.logger.Info("Trip destroyed", zap.String("trip_id", id))
	return nil
}

// Close 销毁所有行程
func (s *TripService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*tripSession)
	subscribers := s.subscribers
	s.subscribers = nil
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.trip.Destroy()
		metrics.ActiveTrips.Dec()
	}
	for _, ch := range subscribers {
		close(ch)
	}
	s.logger.Info("Trip service stopped", zap.Int("trips", len(sessions)))
}

// State 获取行程快照
func (s *TripService) State(id string) (trip.Snapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return trip.Snapshot{}, err
	}
	return sess.trip.State(), nil
}

// Summary 获取行程摘要
func (s *TripService) Summary(id string) (any, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if sess.live != nil {
		return sess.live.Summary(), nil
	}
	return sess.manual.Summary(), nil
}

// FormConfig 手动行程表单配置
func (s *TripService) FormConfig(id string) (trip.FormConfig, error) {
	sess, err := s.get(id)
	if err != nil {
		return trip.FormConfig{}, err
	}
	if sess.manual == nil {
		return trip.FormConfig{}, ErrUnsupported
	}
	return sess.manual.FormConfig(), nil
}

// List 所有行程快照，按创建时间排序
func (s *TripService) List() []trip.Snapshot {
	s.mu.RLock()
	sessions := make([]*tripSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].createdAt.Before(sessions[j].createdAt)
	})

	out := make([]trip.Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.trip.State())
	}
	return out
}

// Subscribe 订阅行程事件
func (s *TripService) Subscribe() <-chan trip.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan trip.Event, 64)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// CarModels 通过行程的 carAPI 插件获取车型
func (s *TripService) CarModels(ctx context.Context, id, carMake string) ([]any, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	p, ok := sess.trip.Plugin(modes.PluginCarAPI)
	if !ok {
		return nil, ErrPluginUnavailable
	}
	return p.(*plugins.CarAPI).FetchModels(ctx, carMake), nil
}

// CarMakes 通过行程的 carAPI 插件获取品牌
func (s *TripService) CarMakes(ctx context.Context, id string) ([]any, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	p, ok := sess.trip.Plugin(modes.PluginCarAPI)
	if !ok {
		return nil, ErrPluginUnavailable
	}
	return p.(*plugins.CarAPI).FetchMakes(ctx), nil
}

// SearchAirports 通过行程的 flightAPI 插件搜索机场
func (s *TripService) SearchAirports(ctx context.Context, id, query string) ([]any, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	p, ok := sess.trip.Plugin(modes.PluginFlightAPI)
	if !ok {
		return nil, ErrPluginUnavailable
	}
	return p.(*plugins.FlightAPI).SearchAirports(ctx, query), nil
}

// History 当前用户的归档行程
func (s *TripService) History(ctx context.Context, userID string, limit, offset int) ([]*models.TripLog, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if userID == "" {
		userID = s.creds.UserID()
	}
	return s.archive.ListByUser(ctx, userID, limit, offset)
}

// HistoryEntry 单条归档行程
func (s *TripService) HistoryEntry(ctx context.Context, id uuid.UUID) (*models.TripLog, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.GetByID(ctx, id)
}

// onEvent 行程事件分发给订阅者与 WebSocket
// 在行程的事件投递路径上调用，不能回调行程的写操作
func (s *TripService) onEvent(ev trip.Event) {
	s.mu.RLock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// 跳过慢消费者
		}
	}
	s.mu.RUnlock()

	if s.hub != nil {
		s.hub.BroadcastTripEvent(ev.TripID, ev)
	}
}
