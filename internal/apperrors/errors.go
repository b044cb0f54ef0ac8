// Package apperrors 定义带稳定业务错误码的业务错误。
// 错误码随接口对外暴露，调用方依赖其做分支处理，不可随意变更。
package apperrors

import "errors"

// Kind 业务错误类别
type Kind int

const (
	KindNotFound     Kind = iota + 1 // 目标实体不存在
	KindForbidden                    // 无权限操作
	KindInvalidState                 // 实体状态不允许该操作
	KindUpstream                     // 第三方接口返回失败
	KindContract                     // 内部契约被破坏，属于缺陷
)

// 业务错误码
const (
	CodeLogisticsOrderNotFound = 17001
	CodeLogisticsInvalidState  = 17002
	CodeTradeNotFound          = 25001
	CodeTradeInvalidState      = 25002
	CodeTradeUpstream          = 25003
	CodeBadCallback            = 10400
	CodeForbidden              = 10403
	CodeContract               = 10500
)

// Error 业务错误，Code 为对外稳定的数字错误码
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NotFound(code int, message string) *Error {
	return New(KindNotFound, code, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, CodeForbidden, message)
}

func InvalidState(code int, message string) *Error {
	return New(KindInvalidState, code, message)
}

func Upstream(code int, message string) *Error {
	return New(KindUpstream, code, message)
}

// Contract 契约违例，按缺陷处理：操作立即中止，调用链不重试
func Contract(message string) *Error {
	return New(KindContract, CodeContract, message)
}

// As 提取业务错误，非业务错误返回 nil
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	e := As(err)
	return e != nil && e.Kind == kind
}
