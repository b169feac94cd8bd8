package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNotLoggedIn 需要登录的接口在未登录时调用
var ErrNotLoggedIn = errors.New("not logged in")

// ErrorKind 远程调用失败的分类
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnreachable ErrorKind = "unreachable"
	KindMalformed   ErrorKind = "malformed_response"
	KindHTTPStatus  ErrorKind = "http_status"
	KindBusiness    ErrorKind = "business_code"
	KindInvalid     ErrorKind = "invalid_request"
)

// 按分类比较用的哨兵错误，配合 errors.Is 使用
var (
	ErrTimeout     = &APIError{Kind: KindTimeout}
	ErrUnreachable = &APIError{Kind: KindUnreachable}
	ErrMalformed   = &APIError{Kind: KindMalformed}
	ErrHTTPStatus  = &APIError{Kind: KindHTTPStatus}
	ErrBusiness    = &APIError{Kind: KindBusiness}
	ErrInvalid     = &APIError{Kind: KindInvalid}
)

// APIError 远程接口错误
type APIError struct {
	Kind       ErrorKind
	Op         string // login / my-project / batch-import
	StatusCode int    // HTTP 状态码
	Code       int    // 业务状态码
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// Is 同分类即视为相等
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage 面向用户的提示文字，每种分类各不相同
func (e *APIError) UserMessage() string {
	switch e.Kind {
	case KindTimeout:
		return "连接超时，请检查服务器地址"
	case KindUnreachable:
		return "无法连接到服务器，请检查服务器地址和网络"
	case KindMalformed:
		if e.Message != "" {
			return "响应格式错误：" + e.Message
		}
		return "响应格式错误"
	case KindHTTPStatus:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	case KindBusiness:
		if e.Message != "" {
			return e.Message
		}
		return "请求失败"
	case KindInvalid:
		return "上传数据校验失败：" + e.Message
	}
	return e.Error()
}

// UserMessage 任意错误的用户提示
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	if errors.Is(err, ErrNotLoggedIn) {
		return "请先登录"
	}
	return err.Error()
}

// statusMessage 响应体没有错误信息时按状态码给出提示
func statusMessage(code int) string {
	switch code {
	case http.StatusUnauthorized:
		return "未授权或登录已过期"
	case http.StatusForbidden:
		return "没有权限"
	case http.StatusNotFound:
		return "接口不存在"
	case http.StatusInternalServerError:
		return "服务器内部错误"
	}
	return fmt.Sprintf("HTTP %d", code)
}

// transportError 区分超时与无法连接
func transportError(op string, err error) *APIError {
	kind := KindUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &APIError{Kind: kind, Op: op, Err: err}
}
