package modes

import "time"

// Mode 出行方式
type Mode string

const (
	Car    Mode = "car"
	Flight Mode = "flight"
	Bus    Mode = "bus"
	Metro  Mode = "metro"
	Tram   Mode = "tram"
)

// FieldType 表单字段类型
type FieldType string

const (
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldText     FieldType = "text"
)

// 插件 ID
const (
	PluginCarAPI    = "carAPI"
	PluginFlightAPI = "flightAPI"
)

// AirportsRule 航班起降机场的跨字段校验 key
const AirportsRule = "airports"

// Option 下拉选项
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field 表单字段定义
type Field struct {
	Key      string    `json:"key"`
	Type     FieldType `json:"type"`
	Label    string    `json:"label"`
	Required bool      `json:"required,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	Default  any       `json:"default,omitempty"`
	Readonly bool      `json:"readonly,omitempty"`
	Options  []Option  `json:"options,omitempty"`
}

// Rule 自定义校验规则
// Check 只接收字段值；CheckData 接收完整数据（跨字段规则）
// 返回空字符串表示通过
type Rule struct {
	Key       string
	Check     func(value any) string
	CheckData func(data Data) string
}

// Validation 校验规则
type Validation struct {
	Required []string
	Custom   []Rule
}

// IsRequired 字段是否必填
func (v Validation) IsRequired(key string) bool {
	for _, r := range v.Required {
		if r == key {
			return true
		}
	}
	return false
}

// Rule 按 key 查找自定义规则
func (v Validation) Rule(key string) (Rule, bool) {
	for _, r := range v.Custom {
		if r.Key == key {
			return r, true
		}
	}
	return Rule{}, false
}

// API 排放计算接口配置
type API struct {
	Emissions string
	Method    string
}

// GPS 定位配置
type GPS struct {
	Enabled        bool
	UpdateInterval time.Duration
	Accuracy       string
}

// HighAccuracy 是否要求高精度定位
func (g GPS) HighAccuracy() bool {
	return g.Accuracy == "high"
}

// Config 出行方式配置，运行期只读
type Config struct {
	Mode       Mode
	Name       string
	Icon       string
	API        API
	Fields     []Field
	Validation Validation
	Plugins    []string
	GPS        GPS

	// StampSaveDate 保存时由行程写入 date 字段
	StampSaveDate bool

	SavePayload      func(Data) map[string]any
	EmissionsPayload func(Data) map[string]any
}

// Field 按 key 查找字段定义
func (c *Config) Field(key string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// DefaultData 按字段定义生成默认数据
// number 默认 0，checkbox 默认 false，其余为空字符串；显式 Default 优先
func (c *Config) DefaultData() Data {
	data := make(Data, len(c.Fields))
	for _, f := range c.Fields {
		switch {
		case f.Default != nil:
			data[f.Key] = f.Default
		case f.Type == FieldNumber:
			data[f.Key] = float64(0)
		case f.Type == FieldCheckbox:
			data[f.Key] = false
		default:
			data[f.Key] = ""
		}
	}
	return data
}
