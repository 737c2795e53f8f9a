package modes

import (
	"fmt"
	"strings"
)

// UnknownModeError 未注册的出行方式
type UnknownModeError struct {
	Mode Mode
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown transport mode: %s", e.Mode)
}

// MissingPluginsError 缺少出行方式所需的插件
type MissingPluginsError struct {
	Mode    Mode
	Missing []string
}

func (e *MissingPluginsError) Error() string {
	return fmt.Sprintf("missing required plugins for %s: %s", e.Mode, strings.Join(e.Missing, ", "))
}
