package plugins

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/trip"
)

// MinAirportQuery 触发搜索的最短查询长度
const MinAirportQuery = 2

// FlightAPI 机场搜索插件
type FlightAPI struct {
	catalog Catalog
	logger  *zap.Logger

	mu       sync.RWMutex
	handle   trip.Handle
	airports []any
	cache    map[string][]any
}

// NewFlightAPI 创建机场搜索插件
func NewFlightAPI(catalog Catalog, logger *zap.Logger) *FlightAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlightAPI{
		catalog: catalog,
		logger:  logger.With(zap.String("plugin", modes.PluginFlightAPI)),
		cache:   make(map[string][]any),
	}
}

func (p *FlightAPI) ID() string { return modes.PluginFlightAPI }

// Init 绑定行程，不预加载数据
func (p *FlightAPI) Init(_ context.Context, h trip.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = h
	return nil
}

// SearchAirports 按 IATA 代码或城市搜索机场
// 少于两个字符的查询直接返回空列表，不发请求
func (p *FlightAPI) SearchAirports(ctx context.Context, query string) []any {
	if utf8.RuneCountInString(query) < MinAirportQuery {
		p.mu.Lock()
		p.airports = []any{}
		p.mu.Unlock()
		p.notify([]any{}, query)
		return []any{}
	}

	p.mu.RLock()
	cached, ok := p.cache[query]
	p.mu.RUnlock()

	if ok {
		p.mu.Lock()
		p.airports = cached
		p.mu.Unlock()
		p.notify(cached, query)
		return cached
	}

	airports, err := p.catalog.SearchAirports(ctx, query)
	if err != nil {
		p.logger.Warn("Failed to search airports", zap.String("query", query), zap.Error(err))
		p.mu.RLock()
		h := p.handle
		p.mu.RUnlock()
		if h != nil {
			h.ReportError("Flight API Error", fmt.Sprintf("Failed to search airports: %s", carbon.Detail(err)))
		}
		return []any{}
	}

	p.mu.Lock()
	p.airports = airports
	p.cache[query] = airports
	p.mu.Unlock()

	p.notify(airports, query)
	return airports
}

// Airports 指定查询的缓存结果；query 为空时返回最近一次结果
func (p *FlightAPI) Airports(query string) []any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if query != "" {
		if airports, ok := p.cache[query]; ok {
			return airports
		}
		return []any{}
	}
	return p.airports
}

// Destroy 释放缓存
func (p *FlightAPI) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string][]any)
	p.airports = nil
	p.handle = nil
}

func (p *FlightAPI) notify(airports []any, query string) {
	p.mu.RLock()
	h := p.handle
	p.mu.RUnlock()
	if h != nil {
		h.Notify(map[string]any{"airports": airports, "airportsLoaded": true, "lastQuery": query})
	}
}
