package plugins

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/trip"
)

// CarAPI 车辆品牌/车型查询插件
type CarAPI struct {
	catalog Catalog
	logger  *zap.Logger

	mu     sync.RWMutex
	handle trip.Handle
	makes  []any
	models []any

	// 缓存：品牌列表与按品牌缓存的车型
	cachedMakes []any
	cache       map[string][]any
}

// NewCarAPI 创建车辆查询插件
func NewCarAPI(catalog Catalog, logger *zap.Logger) *CarAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CarAPI{
		catalog: catalog,
		logger:  logger.With(zap.String("plugin", modes.PluginCarAPI)),
		cache:   make(map[string][]any),
	}
}

func (p *CarAPI) ID() string { return modes.PluginCarAPI }

// Init 绑定行程并加载品牌列表
func (p *CarAPI) Init(ctx context.Context, h trip.Handle) error {
	p.mu.Lock()
	p.handle = h
	p.mu.Unlock()

	p.FetchMakes(ctx)
	return nil
}

// FetchMakes 获取品牌列表，失败时返回空列表
func (p *CarAPI) FetchMakes(ctx context.Context) []any {
	p.mu.RLock()
	cached := p.cachedMakes
	p.mu.RUnlock()

	if cached != nil {
		p.mu.Lock()
		p.makes = cached
		p.mu.Unlock()
		p.notify(map[string]any{"makes": cached, "makesLoaded": true})
		return cached
	}

	makes, err := p.catalog.CarMakes(ctx)
	if err != nil {
		p.logger.Warn("Failed to fetch car makes", zap.Error(err))
		p.reportError(fmt.Sprintf("Failed to load car makes: %s", carbon.Detail(err)))
		return []any{}
	}

	p.mu.Lock()
	p.makes = makes
	p.cachedMakes = makes
	p.mu.Unlock()

	p.notify(map[string]any{"makes": makes, "makesLoaded": true})
	return makes
}

// FetchModels 获取品牌下的车型，并把行程的品牌设为 carMake、清空车型
func (p *CarAPI) FetchModels(ctx context.Context, carMake string) []any {
	if carMake == "" {
		p.mu.Lock()
		p.models = []any{}
		p.mu.Unlock()
		p.notify(map[string]any{"models": []any{}, "modelsLoaded": true, "selectedMake": ""})
		return []any{}
	}

	p.mu.RLock()
	cached, ok := p.cache[carMake]
	p.mu.RUnlock()

	if ok {
		p.mu.Lock()
		p.models = cached
		p.mu.Unlock()
		p.notify(map[string]any{"models": cached, "modelsLoaded": true, "selectedMake": carMake})
		return cached
	}

	models, err := p.catalog.CarModels(ctx, carMake)
	if err != nil {
		p.logger.Warn("Failed to fetch car models", zap.String("make", carMake), zap.Error(err))
		p.reportError(fmt.Sprintf("Failed to load models for %s: %s", carMake, carbon.Detail(err)))
		return []any{}
	}

	p.mu.Lock()
	p.models = models
	p.cache[carMake] = models
	h := p.handle
	p.mu.Unlock()

	if h != nil {
		h.UpdateData(modes.Data{"vehicleMake": carMake, "vehicleModel": ""})
	}
	p.notify(map[string]any{"models": models, "modelsLoaded": true, "selectedMake": carMake})
	return models
}

// Makes 最近一次加载的品牌列表
func (p *CarAPI) Makes() []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.makes
}

// Models 指定品牌的缓存车型；carMake 为空时返回当前车型列表
func (p *CarAPI) Models(carMake string) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if carMake != "" {
		if models, ok := p.cache[carMake]; ok {
			return models
		}
		return []any{}
	}
	return p.models
}

// ClearCache 清空缓存
func (p *CarAPI) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cachedMakes = nil
	p.cache = make(map[string][]any)
}

// Destroy 释放缓存并解除与行程的绑定
func (p *CarAPI) Destroy() {
	p.ClearCache()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.makes = nil
	p.models = nil
	p.handle = nil
}

func (p *CarAPI) notify(payload map[string]any) {
	p.mu.RLock()
	h := p.handle
	p.mu.RUnlock()
	if h != nil {
		h.Notify(payload)
	}
}

func (p *CarAPI) reportError(detail string) {
	p.mu.RLock()
	h := p.handle
	p.mu.RUnlock()
	if h != nil {
		h.ReportError("Car API Error", detail)
	}
}
