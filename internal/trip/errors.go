package trip

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError 字段校验失败（字段 key → 描述）
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Detail()
}

// Detail 按字段名排序后的错误描述
func (e *ValidationError) Detail() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Errors[k]))
	}
	return strings.Join(parts, "; ")
}

// NotImplementedError 生命周期方法未由具体行程类型实现
type NotImplementedError struct {
	Method string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s() must be implemented by a concrete trip", e.Method)
}
