// Package apperr 定义了服务端与客户端共享的错误分类。
// 每一种错误都对应一个HTTP状态码，两端通过状态码互相转换。
package apperr

import (
	"errors"
	"net/http"
)

// 错误类别的哨兵值，使用 errors.Is 判断。
var (
	ErrValidation     = errors.New("validation")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication")
	ErrForbidden      = errors.New("forbidden")
	ErrUnavailable    = errors.New("unavailable")
	ErrRateLimited    = errors.New("rate limited")
)

// Error 携带一个错误类别和面向用户的消息。
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

// Unwrap 同时暴露类别和底层原因，errors.Is 对两者都成立。
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error     { return newError(ErrValidation, msg) }
func Conflict(msg string) *Error       { return newError(ErrConflict, msg) }
func NotFound(msg string) *Error       { return newError(ErrNotFound, msg) }
func Authentication(msg string) *Error { return newError(ErrAuthentication, msg) }
func Forbidden(msg string) *Error      { return newError(ErrForbidden, msg) }
func RateLimited(msg string) *Error    { return newError(ErrRateLimited, msg) }

// Unavailable 包装一个传输层或服务端的故障。
func Unavailable(msg string, cause error) *Error {
	return &Error{Kind: ErrUnavailable, Message: msg, Cause: cause}
}

// StatusCode 将错误映射为HTTP状态码，未分类的错误视为500。
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus 是 StatusCode 的逆操作，供客户端把响应还原成错误。
// 403 在客户端一侧归入认证错误。
func FromStatus(code int, msg string) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code < 400:
		return nil
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return Validation(msg)
	case code == http.StatusUnauthorized:
		return Authentication(msg)
	case code == http.StatusForbidden:
		return &Error{Kind: ErrAuthentication, Message: msg, Cause: ErrForbidden}
	case code == http.StatusNotFound:
		return NotFound(msg)
	case code == http.StatusConflict:
		return Conflict(msg)
	case code == http.StatusTooManyRequests:
		return RateLimited(msg)
	default:
		return Unavailable(msg, nil)
	}
}

// Message 返回适合放进响应体的消息。
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return "服务器内部错误"
}
