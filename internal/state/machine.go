package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 行程阶段常量
const (
	StateIdle        = "idle"
	StateTracking    = "tracking"
	StateEditing     = "editing"
	StateEnding      = "ending"
	StateCalculating = "calculating"
	StateCalculated  = "calculated"
	StateSaving      = "saving"
	StateCompleted   = "completed"
)

// 事件常量
const (
	EventStart           = "start"
	EventEdit            = "edit"
	EventEnd             = "end"
	EventCalculate       = "calculate"
	EventCalculated      = "calculated"
	EventCalculateFailed = "calculate_failed"
	EventSave            = "save"
	EventSaved           = "saved"
	EventSaveFailed      = "save_failed"
	EventReset           = "reset"
)

// Kind 状态机类型
type Kind string

const (
	KindLive   Kind = "live"
	KindManual Kind = "manual"
)

// Snapshot 阶段快照
type Snapshot struct {
	ID    string    `json:"id"`
	Kind  Kind      `json:"kind"`
	State string    `json:"state"`
	Since time.Time `json:"since"`
}

// Machine 行程阶段状态机
// 只记录阶段，错误不会阻塞行程操作
type Machine struct {
	mu            sync.RWMutex
	id            string
	kind          Kind
	fsm           *fsm.FSM
	since         time.Time
	onStateChange func(id string, from, to string)
}

// liveEvents 实时行程：idle → tracking → ending → calculating → calculated → saving → completed
var liveEvents = fsm.Events{
	{Name: EventStart, Src: []string{StateIdle}, Dst: StateTracking},
	{Name: EventEnd, Src: []string{StateTracking}, Dst: StateEnding},
	{Name: EventCalculate, Src: []string{StateIdle, StateEnding, StateCalculated}, Dst: StateCalculating},
	{Name: EventCalculated, Src: []string{StateCalculating}, Dst: StateCalculated},
	{Name: EventCalculateFailed, Src: []string{StateCalculating}, Dst: StateIdle},
	{Name: EventSave, Src: []string{StateCalculated}, Dst: StateSaving},
	{Name: EventSaved, Src: []string{StateSaving}, Dst: StateCompleted},
	{Name: EventSaveFailed, Src: []string{StateSaving}, Dst: StateCalculated},
	{Name: EventReset, Src: []string{StateTracking, StateEnding, StateCalculating, StateCalculated, StateSaving, StateCompleted}, Dst: StateIdle},
}

// manualEvents 手动行程：idle → editing → calculating → calculated → saving → completed
// 已保存的行程再次编辑时回到 editing
var manualEvents = fsm.Events{
	{Name: EventStart, Src: []string{StateIdle}, Dst: StateEditing},
	{Name: EventEdit, Src: []string{StateIdle, StateCalculated, StateCompleted}, Dst: StateEditing},
	{Name: EventCalculate, Src: []string{StateIdle, StateEditing, StateCalculated}, Dst: StateCalculating},
	{Name: EventCalculated, Src: []string{StateCalculating}, Dst: StateCalculated},
	{Name: EventCalculateFailed, Src: []string{StateCalculating}, Dst: StateEditing},
	{Name: EventSave, Src: []string{StateCalculated}, Dst: StateSaving},
	{Name: EventSaved, Src: []string{StateSaving}, Dst: StateCompleted},
	{Name: EventSaveFailed, Src: []string{StateSaving}, Dst: StateCalculated},
	{Name: EventReset, Src: []string{StateEditing, StateCalculating, StateCalculated, StateSaving, StateCompleted}, Dst: StateIdle},
}

// NewMachine 创建状态机
func NewMachine(id string, kind Kind, onStateChange func(id string, from, to string)) *Machine {
	events := manualEvents
	if kind == KindLive {
		events = liveEvents
	}

	m := &Machine{
		id:            id,
		kind:          kind,
		since:         time.Now(),
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		StateIdle,
		events,
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.id, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// NewLiveMachine 创建实时行程状态机
func NewLiveMachine(id string, onStateChange func(id string, from, to string)) *Machine {
	return NewMachine(id, KindLive, onStateChange)
}

// NewManualMachine 创建手动行程状态机
func NewManualMachine(id string, onStateChange func(id string, from, to string)) *Machine {
	return NewMachine(id, KindManual, onStateChange)
}

// Current 获取当前阶段
func (m *Machine) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// Snapshot 获取阶段快照
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		ID:    m.id,
		Kind:  m.kind,
		State: m.fsm.Current(),
		Since: m.since,
	}
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.since = time.Now()
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Fire 可以转换时触发事件，返回是否发生了转换
func (m *Machine) Fire(event string) bool {
	if !m.CanTransition(event) {
		return false
	}
	return m.Trigger(event) == nil
}
