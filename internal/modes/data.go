package modes

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Data 行程数据（字段 key → 值）
// 值的类型与 JSON 解码结果一致：float64、string、bool、nil
type Data map[string]any

// Clone 浅拷贝
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Has 字段是否已定义
func (d Data) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Truthy 字段是否为"真值"
func (d Data) Truthy(key string) bool {
	return Truthy(d[key])
}

// Number 读取数值字段，无法转换时返回 0
func (d Data) Number(key string) float64 {
	n, ok := ToNumber(d[key])
	if !ok {
		return 0
	}
	return n
}

// String 读取字符串字段
func (d Data) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		if n, ok := ToNumber(v); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return ""
	}
}

// Equal 比较两个字段的值
func (d Data) Equal(a, b string) bool {
	return reflect.DeepEqual(d[a], d[b])
}

// Truthy 判断值是否为真：nil、false、0、NaN、"" 为假
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	}
	if n, ok := ToNumber(v); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

// ToNumber 将值转换为 float64
// 字符串按数字解析，布尔值转为 1/0
func ToNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		n, err := val.Float64()
		return n, err == nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
