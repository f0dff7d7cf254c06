package api

import (
	"errors"
	"net/http"

	"velovis/internal/permission"
	"velovis/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeConflict           = "ERR_CONFLICT"
	ErrCodeRateLimited        = "ERR_RATE_LIMITED"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	// 认证错误码
	ErrCodeSessionExpired         = "ERR_SESSION_EXPIRED"
	ErrCodeInsufficientPermission = "ERR_INSUFFICIENT_PERMISSION"

	// 业务逻辑错误码
	ErrCodeMissingField = "ERR_MISSING_FIELD"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// 常用错误响应快捷函数

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

var kindStatus = map[service.Kind]struct {
	status int
	code   string
}{
	service.KindUnauthorized: {http.StatusUnauthorized, ErrCodeUnauthorized},
	service.KindForbidden:    {http.StatusForbidden, ErrCodeForbidden},
	service.KindNotFound:     {http.StatusNotFound, ErrCodeNotFound},
	service.KindConflict:     {http.StatusConflict, ErrCodeConflict},
	service.KindInvalidInput: {http.StatusBadRequest, ErrCodeInvalidRequest},
	service.KindRateLimited:  {http.StatusTooManyRequests, ErrCodeRateLimited},
}

// ServiceError writes the response for an error returned by the service layer.
// Errors without a kind are logged and reported as a generic 500.
func ServiceError(c *gin.Context, err error, op string) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		if m, ok := kindStatus[svcErr.Kind]; ok {
			ErrorResponseWithDetails(c, m.status, m.code, svcErr.Message, svcErr.Details)
			return
		}
	}
	if errors.Is(err, permission.ErrInsufficientPermission) {
		ErrorResponse(c, http.StatusForbidden, ErrCodeInsufficientPermission, "insufficient permission")
		return
	}
	logrus.WithError(err).WithField("op", op).Error("request failed")
	InternalError(c, "internal server error")
}
