package plugins

import (
	"context"

	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/trip"
)

// Catalog 参考数据来源
type Catalog interface {
	CarMakes(ctx context.Context) ([]any, error)
	CarModels(ctx context.Context, carMake string) ([]any, error)
	SearchAirports(ctx context.Context, query string) ([]any, error)
}

// Registry 为一个行程创建全部可用插件
// 插件持有所属行程的 Handle，不能在行程之间共享
func Registry(catalog Catalog, logger *zap.Logger) map[string]trip.Plugin {
	return map[string]trip.Plugin{
		modes.PluginCarAPI:    NewCarAPI(catalog, logger),
		modes.PluginFlightAPI: NewFlightAPI(catalog, logger),
	}
}

// Available 可用插件 ID
func Available() []string {
	return []string{modes.PluginCarAPI, modes.PluginFlightAPI}
}
