package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/tripgazer/internal/modes"
)

// gpsView 定位配置
type gpsView struct {
	Enabled          bool   `json:"enabled"`
	UpdateIntervalMs int64  `json:"updateIntervalMs"`
	Accuracy         string `json:"accuracy"`
}

// modeView 出行方式配置的对外视图
type modeView struct {
	Mode     modes.Mode    `json:"mode"`
	Name     string        `json:"name"`
	Icon     string        `json:"icon"`
	Fields   []modes.Field `json:"fields"`
	Required []string      `json:"required"`
	Plugins  []string      `json:"plugins"`
	GPS      gpsView       `json:"gps"`
}

func newModeView(cfg *modes.Config) modeView {
	plugins := cfg.Plugins
	if plugins == nil {
		plugins = []string{}
	}
	return modeView{
		Mode:     cfg.Mode,
		Name:     cfg.Name,
		Icon:     cfg.Icon,
		Fields:   cfg.Fields,
		Required: cfg.Validation.Required,
		Plugins:  plugins,
		GPS: gpsView{
			Enabled:          cfg.GPS.Enabled,
			UpdateIntervalMs: cfg.GPS.UpdateInterval.Milliseconds(),
			Accuracy:         cfg.GPS.Accuracy,
		},
	}
}

// ListModes 全部出行方式
func (h *Handler) ListModes(c *gin.Context) {
	all := modes.All()
	views := make([]modeView, 0, len(all))
	for _, m := range all {
		cfg, err := modes.Get(m)
		if err != nil {
			continue
		}
		views = append(views, newModeView(cfg))
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

// GetMode 单个出行方式
func (h *Handler) GetMode(c *gin.Context) {
	cfg, err := modes.Get(modes.Mode(c.Param("mode")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newModeView(cfg)})
}
