package apperr

import (
	"errors"
	"fmt"
)

// Code is the business code carried in every response envelope.
type Code int

const (
	CodeSuccess Code = 200

	CodeInvalidToken Code = 401
	CodeAccessDenied Code = 402
	CodeAuthFailed   Code = 403

	CodeParamValid       Code = 4001
	CodeParamBind        Code = 4002
	CodeParamType        Code = 4003
	CodeBodyNotReadable  Code = 4004
	CodeMethodNotAllowed Code = 4005

	CodeUserExist            Code = 5001
	CodeUserNotFound         Code = 5002
	CodeUserDisabled         Code = 5003
	CodeFailedLogin          Code = 5004
	CodeMeterNotFound        Code = 5005
	CodeReportNotFound       Code = 5006
	CodeFailedDelete         Code = 5007
	CodeInvalidStatus        Code = 5008
	CodeInvalidRole          Code = 5009
	CodeInvalidMeterType     Code = 5010
	CodeInvalidMeterStatus   Code = 5011
	CodeNoDataFound          Code = 5012
	CodeInvalidMeterID       Code = 5013
	CodeInvalidReadingValue  Code = 5014
	CodeInvalidReadingTime   Code = 5015
	CodeInvalidTimeRange     Code = 5016
	CodeInsufficientReadings Code = 5017
	CodeInvalidReportID      Code = 5018
	CodeInvalidUserID        Code = 5019
	CodeMissingTimeRange     Code = 5020
	CodeOldPasswordError     Code = 5021

	CodeSystemError Code = 9999
)

var messages = map[Code]string{
	CodeSuccess:              "成功",
	CodeInvalidToken:         "无效的Token",
	CodeAccessDenied:         "无权访问",
	CodeAuthFailed:           "认证失败",
	CodeParamValid:           "参数校验失败",
	CodeParamBind:            "参数绑定失败",
	CodeParamType:            "参数类型错误",
	CodeBodyNotReadable:      "请求体解析失败",
	CodeMethodNotAllowed:     "不支持的请求方法",
	CodeUserExist:            "用户已存在",
	CodeUserNotFound:         "用户不存在",
	CodeUserDisabled:         "用户已被禁用",
	CodeFailedLogin:          "登录失败",
	CodeMeterNotFound:        "电表不存在",
	CodeReportNotFound:       "报表无法获取",
	CodeFailedDelete:         "删除失败",
	CodeInvalidStatus:        "无效的状态",
	CodeInvalidRole:          "无效的角色",
	CodeInvalidMeterType:     "无效的电表类型",
	CodeInvalidMeterStatus:   "无效的电表状态",
	CodeNoDataFound:          "未找到匹配的记录",
	CodeInvalidMeterID:       "无效的电表ID",
	CodeInvalidReadingValue:  "无效的读数值",
	CodeInvalidReadingTime:   "无效的读数时间",
	CodeInvalidTimeRange:     "无效的时间范围",
	CodeInsufficientReadings: "读数不足",
	CodeInvalidReportID:      "无效的报表ID",
	CodeInvalidUserID:        "无效的用户ID",
	CodeMissingTimeRange:     "时间范围不能为空",
	CodeOldPasswordError:     "旧密码错误",
	CodeSystemError:          "系统繁忙，请稍后再试",
}

// Message returns the default human readable message for the code.
func (c Code) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return messages[CodeSystemError]
}

// Kind groups codes into the three failure families.
type Kind int

const (
	KindValidation Kind = iota
	KindAuth
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindSystem:
		return "system"
	default:
		return "validation"
	}
}

// Kind derives the failure family from the code.
func (c Code) Kind() Kind {
	switch c {
	case CodeInvalidToken, CodeAccessDenied, CodeAuthFailed:
		return KindAuth
	case CodeSystemError:
		return KindSystem
	default:
		return KindValidation
	}
}

// Error is an expected business or authentication failure. Msg is safe to show
// to callers; Err holds the underlying cause for logs only.
type Error struct {
	Code Code
	Msg  string
	Err  error

	// authentication marks codes shared with validation paths, such as 5002,
	// that were raised while authenticating the request.
	authentication bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Kind reports the failure family of the error.
func (e *Error) Kind() Kind {
	if e.authentication {
		return KindAuth
	}
	return e.Code.Kind()
}

// New builds an error carrying the default message of code.
func New(code Code) *Error {
	return &Error{Code: code, Msg: code.Message()}
}

// NewAuth builds an authentication failure carrying the default message of
// code. The token subject that no longer resolves (5002) is reported this way.
func NewAuth(code Code) *Error {
	return &Error{Code: code, Msg: code.Message(), authentication: true}
}

// Newf builds an error with a caller supplied message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a coded error with the default message.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Msg: code.Message(), Err: cause}
}

// From converts any error into an *Error. Errors that are not already coded are
// reported as system errors so internal details never reach the caller.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return Wrap(CodeSystemError, err)
}

// HasCode reports whether err is a coded error with the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	return errors.As(err, &coded) && coded.Code == code
}
