package trip

import (
	"context"
	"fmt"
	"strconv"

	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/session"
	"github.com/langchou/tripgazer/internal/state"
)

// ManualTrip 手动填写的行程
// 结束即提交计算，不会自动保存
type ManualTrip struct {
	*base

	// 以下字段由 base.mu 保护
	formTouched bool
	fieldErrors map[string]string
}

// NewManualTrip 创建手动行程
func NewManualTrip(mode modes.Mode, userID string, opts Options) (*ManualTrip, error) {
	b, err := newBase(mode, userID, KindManual, &opts)
	if err != nil {
		return nil, err
	}

	t := &ManualTrip{
		base:        b,
		fieldErrors: make(map[string]string),
	}
	b.afterValidate = t.mergeFieldErrors
	return t, nil
}

// mergeFieldErrors 航班起降机场交叉校验，并合并逐字段校验的错误
func (t *ManualTrip) mergeFieldErrors(errs map[string]string) {
	if t.mode == modes.Flight &&
		t.data.Truthy("fromAirport") && t.data.Truthy("toAirport") &&
		t.data.Equal("fromAirport", "toAirport") {
		errs[modes.AirportsRule] = "From and To airports must be different"
	}
	for k, v := range t.fieldErrors {
		errs[k] = v
	}
}

// StartTrip 只标记为进行中
func (t *ManualTrip) StartTrip(context.Context, session.Credential) bool {
	t.mu.Lock()
	if t.isCompleted {
		t.machine.Fire(state.EventReset)
		t.isCompleted = false
	}
	t.isActive = true
	t.machine.Fire(state.EventStart)
	t.queue(Event{Type: EventStateChange, Payload: map[string]any{
		"isActive": true,
		"mode":     "manual",
		"message":  fmt.Sprintf("Enter %s trip details manually", t.config.Name),
	}})
	t.mu.Unlock()
	t.flush()
	return true
}

// EndTrip 提交计算，成功后等待用户手动保存
func (t *ManualTrip) EndTrip(ctx context.Context, cred session.Credential) bool {
	if !t.CalculateEmissions(ctx, cred) {
		return false
	}

	t.mu.Lock()
	t.isActive = false
	t.queue(Event{Type: EventStateChange, Payload: map[string]any{
		"isActive":   false,
		"calculated": true,
		"message":    fmt.Sprintf("%s emissions calculated. Click 'Save to History' to save.", t.config.Name),
	}})
	t.mu.Unlock()
	t.flush()
	return true
}

// SaveTrip 用户手动保存
func (t *ManualTrip) SaveTrip(ctx context.Context, cred session.Credential) bool {
	if !t.base.SaveTrip(ctx, cred) {
		return false
	}

	t.mu.Lock()
	t.queue(Event{Type: EventStateChange, Payload: map[string]any{
		"manualSaved": true,
		"message":     fmt.Sprintf("%s trip saved to history!", t.config.Name),
	}})
	t.mu.Unlock()
	t.flush()
	return true
}

// ValidateField 校验单个字段：必填、数值范围、自定义规则，第一条失败的规则生效
func (t *ManualTrip) ValidateField(field string, value any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.validateFieldLocked(field, value)
}

func (t *ManualTrip) validateFieldLocked(field string, value any) bool {
	delete(t.fieldErrors, field)

	label := field
	def, hasDef := t.config.Field(field)
	if hasDef && def.Label != "" {
		label = def.Label
	}

	if t.config.Validation.IsRequired(field) && !modes.Truthy(value) {
		t.fieldErrors[field] = label + " is required"
		return false
	}

	if hasDef {
		if n, ok := modes.ToNumber(value); ok {
			if def.Min != nil && n < *def.Min {
				t.fieldErrors[field] = fmt.Sprintf("%s must be at least %s", label, formatNumber(*def.Min))
				return false
			}
			if def.Max != nil && n > *def.Max {
				t.fieldErrors[field] = fmt.Sprintf("%s cannot exceed %s", label, formatNumber(*def.Max))
				return false
			}
		}
	}

	if rule, ok := t.config.Validation.Rule(field); ok && rule.Check != nil {
		if msg := rule.Check(value); msg != "" {
			t.fieldErrors[field] = msg
			return false
		}
	}

	return true
}

// UpdateField 更新单个字段并实时校验
func (t *ManualTrip) UpdateField(field string, value any) bool {
	t.mu.Lock()
	t.formTouched = true
	t.data[field] = value
	ok := t.validateFieldLocked(field, value)
	t.editLocked()
	t.queue(Event{Type: EventDataUpdate, Payload: map[string]any{
		field:         value,
		"fieldErrors": copyErrors(t.fieldErrors),
	}})
	t.mu.Unlock()
	t.flush()
	return ok
}

// UpdateFields 批量更新字段
func (t *ManualTrip) UpdateFields(updates modes.Data) bool {
	t.mu.Lock()
	t.formTouched = true

	ok := true
	payload := make(map[string]any, len(updates)+1)
	for field, value := range updates {
		t.data[field] = value
		if !t.validateFieldLocked(field, value) {
			ok = false
		}
		payload[field] = value
	}
	payload["fieldErrors"] = copyErrors(t.fieldErrors)

	t.editLocked()
	t.queue(Event{Type: EventDataUpdate, Payload: payload})
	t.mu.Unlock()
	t.flush()
	return ok
}

// editLocked 进入编辑，已保存的行程重新打开
func (t *ManualTrip) editLocked() {
	if t.machine.Fire(state.EventEdit) {
		t.isCompleted = false
	}
}

// CanCalculate 表单已填写、没有字段错误且必填项齐全
func (t *ManualTrip) CanCalculate() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canCalculateLocked()
}

func (t *ManualTrip) canCalculateLocked() bool {
	if !t.formTouched || len(t.fieldErrors) > 0 {
		return false
	}
	for _, key := range t.config.Validation.Required {
		if !t.data.Truthy(key) {
			return false
		}
	}
	return true
}

// CanSave 已计算排放且没有进行中的请求
func (t *ManualTrip) CanSave() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.emission != nil && !t.loading
}

// ResetForm 恢复表单默认值
func (t *ManualTrip) ResetForm() {
	t.mu.Lock()
	t.resetLocked()
	t.formTouched = false
	t.fieldErrors = make(map[string]string)
	t.queue(Event{Type: EventStateChange, Payload: t.statePayloadLocked()})
	t.queue(Event{Type: EventStateChange, Payload: map[string]any{
		"formReset": true,
		"message":   "Form reset to default values",
	}})
	t.mu.Unlock()
	t.flush()
}

// FormConfig 表单配置
type FormConfig struct {
	TransportMode modes.Mode    `json:"transportMode"`
	Name          string        `json:"name"`
	Icon          string        `json:"icon"`
	Fields        []modes.Field `json:"fields"`
	Required      []string      `json:"required"`
	Plugins       []string      `json:"plugins"`
}

// FormConfig 返回表单配置
func (t *ManualTrip) FormConfig() FormConfig {
	return FormConfig{
		TransportMode: t.mode,
		Name:          t.config.Name,
		Icon:          t.config.Icon,
		Fields:        t.config.Fields,
		Required:      t.config.Validation.Required,
		Plugins:       t.config.Plugins,
	}
}

// FieldValue 按字段类型转换后的值
func (t *ManualTrip) FieldValue(field string) any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fieldValueLocked(field)
}

func (t *ManualTrip) fieldValueLocked(field string) any {
	value := t.data[field]
	def, ok := t.config.Field(field)
	if !ok {
		return value
	}

	switch def.Type {
	case modes.FieldNumber:
		n, ok := modes.ToNumber(value)
		if !ok {
			return float64(0)
		}
		return n
	case modes.FieldCheckbox:
		return modes.Truthy(value)
	default:
		return value
	}
}

// IsFieldReadonly 字段是否只读
func (t *ManualTrip) IsFieldReadonly(field string) bool {
	def, ok := t.config.Field(field)
	return ok && def.Readonly
}

// FormField 表单展示数据
type FormField struct {
	Value    any         `json:"value"`
	Config   modes.Field `json:"config"`
	Error    *string     `json:"error"`
	Readonly bool        `json:"readonly"`
}

// FormData 表单展示数据
func (t *ManualTrip) FormData() map[string]FormField {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.formDataLocked()
}

func (t *ManualTrip) formDataLocked() map[string]FormField {
	out := make(map[string]FormField, len(t.config.Fields))
	for _, f := range t.config.Fields {
		var errMsg *string
		if msg, ok := t.fieldErrors[f.Key]; ok {
			errMsg = &msg
		}
		out[f.Key] = FormField{
			Value:    t.fieldValueLocked(f.Key),
			Config:   f,
			Error:    errMsg,
			Readonly: f.Readonly,
		}
	}
	return out
}

// ManualSummary 手动行程摘要
type ManualSummary struct {
	Snapshot
	Mode     string               `json:"mode"`
	FormData map[string]FormField `json:"formData"`
}

// Summary 行程摘要
func (t *ManualTrip) Summary() ManualSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ManualSummary{
		Snapshot: t.snapshotLocked(),
		Mode:     "manual",
		FormData: t.formDataLocked(),
	}
}

// State 状态快照
func (t *ManualTrip) State() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// snapshotLocked 附带表单状态的快照
func (t *ManualTrip) snapshotLocked() Snapshot {
	snap := t.base.snapshotLocked()
	snap.Manual = &ManualState{
		FormTouched:  t.formTouched,
		FieldErrors:  copyErrors(t.fieldErrors),
		CanCalculate: t.canCalculateLocked(),
		CanSave:      t.emission != nil && !t.loading,
	}
	return snap
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
