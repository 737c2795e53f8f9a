package trip

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/sensor"
	"github.com/langchou/tripgazer/internal/session"
)

const testCred = session.Credential("test-token")

// fakeBackend 记录请求的后端替身
type fakeBackend struct {
	mu sync.Mutex

	emissionKg float64
	calcErr    error
	saveErr    error
	startID    string
	startErr   error
	endErr     error
	predict    *carbon.PredictResponse
	predictErr error
	// startGate 非空时服务端登记阻塞到通道关闭
	startGate chan struct{}

	calcCalls  int
	saveCalls  int
	startCalls int
	endCalls   int
	lastCalc   map[string]any
	lastSave   map[string]any
	lastPath   string
	lastEnd    carbon.EndTripRequest
	batches    [][]sensor.Packet
}

func (f *fakeBackend) CalculateEmissions(_ context.Context, _ session.Credential, path, _ string, payload map[string]any) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calcCalls++
	f.lastCalc = payload
	f.lastPath = path
	return f.emissionKg, f.calcErr
}

func (f *fakeBackend) LogEmission(_ context.Context, _ session.Credential, record map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	f.lastSave = record
	return f.saveErr
}

func (f *fakeBackend) StartTrip(context.Context, session.Credential, carbon.StartTripRequest) (string, error) {
	f.mu.Lock()
	f.startCalls++
	gate := f.startGate
	id, err := f.startID, f.startErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return id, err
}

func (f *fakeBackend) starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls
}

func (f *fakeBackend) EndTrip(_ context.Context, _ session.Credential, req carbon.EndTripRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	f.lastEnd = req
	return f.endErr
}

func (f *fakeBackend) Predict(_ context.Context, _ session.Credential, req carbon.PredictRequest) (*carbon.PredictResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, req.SensorDataArray)
	return f.predict, f.predictErr
}

func (f *fakeBackend) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calcCalls + f.saveCalls + f.startCalls + f.endCalls + len(f.batches)
}

func (f *fakeBackend) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// eventLog 收集行程事件
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(typ EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (l *eventLog) lastError() (Event, bool) {
	errs := l.ofType(EventError)
	if len(errs) == 0 {
		return Event{}, false
	}
	return errs[len(errs)-1], true
}

func (l *eventLog) hasPayload(key string) bool {
	for _, ev := range l.ofType(EventStateChange) {
		if _, ok := ev.Payload[key]; ok {
			return true
		}
	}
	return false
}

// clock 可控时钟
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions(t *testing.T, backend Backend, log *eventLog) Options {
	t.Helper()
	return Options{
		Backend:  backend,
		Logger:   zaptest.NewLogger(t),
		Listener: log.listen,
	}
}

func newManual(t *testing.T, mode modes.Mode, backend Backend) (*ManualTrip, *eventLog) {
	t.Helper()
	log := &eventLog{}
	trip, err := NewManualTrip(mode, "user-1", testOptions(t, backend, log))
	if err != nil {
		t.Fatalf("new manual trip: %v", err)
	}
	t.Cleanup(trip.Destroy)
	return trip, log
}

// stubPlugin 记录初始化与销毁
type stubPlugin struct {
	id        string
	order     *[]string
	destroyed bool
	initErr   error
}

func (p *stubPlugin) ID() string { return p.id }

func (p *stubPlugin) Init(_ context.Context, h Handle) error {
	*p.order = append(*p.order, p.id)
	h.Notify(map[string]any{"pluginReady": p.id})
	return p.initErr
}

func (p *stubPlugin) Destroy() { p.destroyed = true }
