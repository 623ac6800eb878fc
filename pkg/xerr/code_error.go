package xerr

import "fmt"

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// Newf 创建带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

// 领域错误码（知识库/智能体编排）
const (
	CodeValidation          = 400
	CodeNotFound            = 404
	CodeParse               = 422
	CodeFetch               = 502
	CodeUnsupportedStrategy = 4001
	CodeUnsupportedModel    = 4002
	CodeNoContent           = 4003
	CodeModelInvocation     = 5001
)

// 常用预定义错误
var (
	ErrSuccess     = New(OK, "Success")
	ErrServerError = New(InternalServerError, "系统错误，请联系工作人员")
	ErrParam       = New(BadRequest, "参数错误")
)

// ValidationError 请求字段缺失或非法
func ValidationError(msg string) *CodeError { return New(CodeValidation, msg) }

// NotFoundError 知识库/智能体/模型不存在
func NotFoundError(msg string) *CodeError { return New(CodeNotFound, msg) }

// FetchError 远程文件或工具调用失败
func FetchError(msg string) *CodeError { return New(CodeFetch, msg) }

// ParseError 文档格式不支持或内容损坏
func ParseError(msg string) *CodeError { return New(CodeParse, msg) }

// UnsupportedStrategy 切分策略未实现
func UnsupportedStrategy(strategy string) *CodeError {
	return Newf(CodeUnsupportedStrategy, "不支持的切分策略: %s", strategy)
}

// UnsupportedModel 模型标识无法识别
func UnsupportedModel(model string) *CodeError {
	return Newf(CodeUnsupportedModel, "不支持的模型: %s", model)
}

// NoContent 入库流程未产生任何 chunk
func NoContent(msg string) *CodeError { return New(CodeNoContent, msg) }

// ModelInvocationError 模型调用失败
func ModelInvocationError(msg string) *CodeError { return New(CodeModelInvocation, msg) }

// From 将任意错误规范化为 CodeError，内部错误不暴露细节
func From(err error) *CodeError {
	if err == nil {
		return ErrSuccess
	}
	if ce, ok := err.(*CodeError); ok {
		return ce
	}
	return ErrServerError
}
