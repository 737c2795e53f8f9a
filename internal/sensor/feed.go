package sensor

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Feed 推送式数据源，同时实现 PositionSource 与 MotionSource
// 设备端上报的数据通过 Push* 方法注入，按到达顺序分发给所有订阅者
type Feed struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	watchers map[int]*watcher
	nextID   int
	motion   Motion
	hasMo    bool
	motionOn int

	// deliverMu 串行化回调，保证订阅者按到达顺序收到数据
	deliverMu sync.Mutex
}

type watcher struct {
	id         int
	feed       *Feed
	opts       WatchOptions
	onPosition func(Position)
	onError    func(*GeolocationError)
	timer      *time.Timer
	cancelled  bool
}

// NewFeed 创建推送式数据源
func NewFeed(logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		logger:   logger,
		now:      time.Now,
		watchers: make(map[int]*watcher),
	}
}

// Watch 订阅位置更新
// 在 opts.Timeout 内没有收到新位置时上报 Timeout 错误，并继续等待
func (f *Feed) Watch(opts WatchOptions, onPosition func(Position), onError func(*GeolocationError)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	w := &watcher{
		id:         f.nextID,
		feed:       f,
		opts:       opts,
		onPosition: onPosition,
		onError:    onError,
	}
	if opts.Timeout > 0 {
		w.timer = time.AfterFunc(opts.Timeout, w.expire)
	}
	f.watchers[w.id] = w

	f.logger.Debug("Position watch started",
		zap.Int("watch_id", w.id),
		zap.Bool("high_accuracy", opts.HighAccuracy),
		zap.Duration("timeout", opts.Timeout))

	return w, nil
}

// Cancel 取消订阅
func (w *watcher) Cancel() {
	f := w.feed
	f.mu.Lock()
	defer f.mu.Unlock()

	if w.cancelled {
		return
	}
	w.cancelled = true
	if w.timer != nil {
		w.timer.Stop()
	}
	delete(f.watchers, w.id)

	f.logger.Debug("Position watch cancelled", zap.Int("watch_id", w.id))
}

// expire 定位超时，重新计时后继续等待
func (w *watcher) expire() {
	f := w.feed
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	if w.cancelled {
		f.mu.Unlock()
		return
	}
	w.timer.Reset(w.opts.Timeout)
	f.mu.Unlock()

	if w.onError != nil {
		w.onError(NewGeolocationError(Timeout, "no position within timeout"))
	}
}

// active 当前有效的订阅快照
func (f *Feed) active() []*watcher {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*watcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// PushPosition 注入一次定位结果
func (f *Feed) PushPosition(pos Position) {
	if pos.Timestamp.IsZero() {
		pos.Timestamp = f.now()
	}

	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	for _, w := range f.active() {
		if w.opts.MaximumAge > 0 && f.now().Sub(pos.Timestamp) > w.opts.MaximumAge {
			f.logger.Debug("Dropping stale position",
				zap.Int("watch_id", w.id),
				zap.Time("timestamp", pos.Timestamp))
			continue
		}

		f.mu.Lock()
		if w.cancelled {
			f.mu.Unlock()
			continue
		}
		if w.timer != nil {
			w.timer.Reset(w.opts.Timeout)
		}
		f.mu.Unlock()

		if w.onPosition != nil {
			w.onPosition(pos)
		}
	}
}

// PushError 注入定位错误
func (f *Feed) PushError(err *GeolocationError) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	for _, w := range f.active() {
		if w.onError != nil {
			w.onError(err)
		}
	}
}

// PushMotion 记录最近一次运动读数
func (f *Feed) PushMotion(m Motion) {
	if m.Timestamp.IsZero() {
		m.Timestamp = f.now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.motion = m
	f.hasMo = true
}

// Start 开始接收运动数据
func (f *Feed) Start() (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.motionOn++
	return &motionSub{feed: f}, nil
}

// Latest 最近一次运动读数
func (f *Feed) Latest() (Motion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.motion, f.hasMo
}

// Watchers 当前位置订阅数
func (f *Feed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// MotionListeners 当前运动数据订阅数
func (f *Feed) MotionListeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.motionOn
}

type motionSub struct {
	feed *Feed
	once sync.Once
}

func (s *motionSub) Cancel() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		s.feed.motionOn--
		s.feed.mu.Unlock()
	})
}
