// Package errs 资产存储对外暴露的错误分类
//
// 服务层只返回 *Error，调用方通过 errors.Is(err, errs.ErrNotFound) 之类的
// 哨兵判断类别，存储/数据库的底层错误不会原样泄露。
package errs

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindInvalidState
	KindStorageInconsistency
	KindUnsupportedVariant
	KindUpstreamFailure
	KindInvalidArgument
	KindAccessDenied
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindStorageInconsistency:
		return "storage_inconsistency"
	case KindUnsupportedVariant:
		return "unsupported_variant"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindAccessDenied:
		return "access_denied"
	default:
		return "unknown"
	}
}

// 哨兵，仅用于 errors.Is 比较
var (
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrStorageInconsistency = &Error{Kind: KindStorageInconsistency}
	ErrUnsupportedVariant   = &Error{Kind: KindUnsupportedVariant}
	ErrUpstreamFailure      = &Error{Kind: KindUpstreamFailure}
	ErrInvalidArgument      = &Error{Kind: KindInvalidArgument}
	ErrAccessDenied         = &Error{Kind: KindAccessDenied}
)

// Error 带类别的错误
type Error struct {
	Kind Kind
	Op   string // 出错的操作，如 "assets.Link"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 同类别即视为匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...interface{}) error {
	return newError(KindNotFound, op, format, args...)
}

func Conflict(op, format string, args ...interface{}) error {
	return newError(KindConflict, op, format, args...)
}

func InvalidState(op, format string, args ...interface{}) error {
	return newError(KindInvalidState, op, format, args...)
}

func StorageInconsistency(op, format string, args ...interface{}) error {
	return newError(KindStorageInconsistency, op, format, args...)
}

func UnsupportedVariant(op, format string, args ...interface{}) error {
	return newError(KindUnsupportedVariant, op, format, args...)
}

func InvalidArgument(op, format string, args ...interface{}) error {
	return newError(KindInvalidArgument, op, format, args...)
}

func AccessDenied(op, format string, args ...interface{}) error {
	return newError(KindAccessDenied, op, format, args...)
}

// Upstream 把底层存储/数据库错误包装为 UpstreamFailure
// 已经分类过的错误原样返回
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindUpstreamFailure, Op: op, Err: err}
}

// KindOf 返回错误类别，未分类返回 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
