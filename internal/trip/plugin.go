package trip

import (
	"context"

	"github.com/langchou/tripgazer/internal/modes"
)

// Plugin 出行方式插件
type Plugin interface {
	ID() string
	Destroy()
}

// Initializer 需要在加载时初始化的插件
type Initializer interface {
	Init(ctx context.Context, h Handle) error
}

// Handle 插件可见的行程接口
type Handle interface {
	Mode() modes.Mode
	// Data 返回数据副本
	Data() modes.Data
	UpdateData(patch modes.Data)
	// Notify 发出 data_update 事件但不修改行程数据
	Notify(payload map[string]any)
	ReportError(title, detail string)
}

type handle struct {
	b *base
}

func (h handle) Mode() modes.Mode { return h.b.mode }

func (h handle) Data() modes.Data {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	return h.b.data.Clone()
}

func (h handle) UpdateData(patch modes.Data) { h.b.UpdateData(patch) }

func (h handle) Notify(payload map[string]any) {
	h.b.mu.Lock()
	h.b.queue(Event{Type: EventDataUpdate, Payload: payload})
	h.b.mu.Unlock()
	h.b.flush()
}

func (h handle) ReportError(title, detail string) {
	h.b.mu.Lock()
	h.b.queueError(title, detail, nil)
	h.b.mu.Unlock()
	h.b.flush()
}
