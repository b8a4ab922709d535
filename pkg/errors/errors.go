package errors

import (
	"errors"
	"fmt"
)

// Kind 错误类别，决定重试与传播策略
type Kind int

const (
	// KindTransient 临时性/未知错误，可重试
	KindTransient Kind = iota
	// KindAuth 认证失败，不重试，终止整个运行
	KindAuth
	// KindNotFound 数据不存在（如未来学期尚无考试数据），按空结果处理
	KindNotFound
	// KindValidation 单条记录格式错误，记录日志后丢弃
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "transient"
	}
}

// 哨兵错误，配合 errors.Is 使用
var (
	ErrTransient  = errors.New("上游临时性错误")
	ErrAuth       = errors.New("上游认证失败")
	ErrNotFound   = errors.New("上游数据不存在")
	ErrValidation = errors.New("记录校验失败")
)

// Error 带类别与操作上下文的错误
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.sentinel())
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrAuth) 等判断按类别生效
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindAuth:
		return ErrAuth
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	default:
		return ErrTransient
	}
}

// New 构造指定类别的错误
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transient 构造可重试错误
func Transient(op string, err error) *Error { return New(KindTransient, op, err) }

// Auth 构造认证错误
func Auth(op string, err error) *Error { return New(KindAuth, op, err) }

// NotFound 构造不存在错误
func NotFound(op string, err error) *Error { return New(KindNotFound, op, err) }

// Validation 构造校验错误
func Validation(op string, err error) *Error { return New(KindValidation, op, err) }

// KindOf 返回错误类别；未分类的错误视为临时性错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	}
	return KindTransient
}

// IsRetryable 仅临时性错误允许重试
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}
