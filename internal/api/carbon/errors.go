package carbon

import (
	"errors"
	"fmt"
)

// ErrInvalidResponseFormat 成功响应中找不到排放值
var ErrInvalidResponseFormat = errors.New("invalid response format")

// NetworkError 请求失败：非 2xx 响应或传输错误（Status 为 0）
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status=%d %s", e.Op, e.Status, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Detail 面向用户的错误描述
func Detail(err error) string {
	var netErr *NetworkError
	if errors.As(err, &netErr) && netErr.Status != 0 {
		return netErr.Message
	}
	if errors.Is(err, ErrInvalidResponseFormat) {
		return "Invalid response format"
	}
	return err.Error()
}
