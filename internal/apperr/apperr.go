// Package apperr 定义客户端核心的错误分类
// 网络错误（ServerError）定义在 api 包中，这里只放本地产生的错误
package apperr

import (
	"errors"
	"fmt"
)

// 错误类别哨兵，配合 errors.Is 使用
var (
	ErrValidation     = errors.New("validation error")
	ErrStateViolation = errors.New("state violation")
	ErrStorage        = errors.New("storage error")
)

// ValidationError 本地输入不合法（文件类型错误、空问题等）
// 在发起任何网络请求之前返回，不修改任何状态
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StateViolation 当前模式不允许的状态迁移
type StateViolation struct {
	From   string
	Action string
	Reason string
}

func (e *StateViolation) Error() string {
	return fmt.Sprintf("cannot %s while %s: %s", e.Action, e.From, e.Reason)
}

func (e *StateViolation) Is(target error) bool { return target == ErrStateViolation }

// StorageError 会话存储读写失败
// 非致命：内存状态继续前进，直到下一次写入成功
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Validation 构造 ValidationError
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Violation 构造 StateViolation
func Violation(from, action, reason string) error {
	return &StateViolation{From: from, Action: action, Reason: reason}
}

// Storage 包装存储层错误，err 为 nil 时返回 nil
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
