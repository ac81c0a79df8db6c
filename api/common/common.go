package common

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/internal/errs"
)

type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Msg:    message,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", message, nil)
}

// RespondErrorAbort 返回错误并终止后续处理
func RespondErrorAbort(c *gin.Context, httpStatus int, message string) {
	RespondError(c, httpStatus, message)
	c.Abort()
}

// RespondErr 按错误类别映射 HTTP 状态码
// 上游失败只返回通用信息，详细错误写日志
func RespondErr(c *gin.Context, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		log.Printf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := StatusFor(e.Kind)
	msg := e.Error()
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = http.StatusText(status)
	}
	c.JSON(status, Response{
		Status: "error",
		Msg:    msg,
		Code:   e.Kind.String(),
	})
}

// StatusFor 错误类别对应的 HTTP 状态码
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict, errs.KindInvalidState:
		return http.StatusConflict
	case errs.KindInvalidArgument:
		return http.StatusBadRequest
	case errs.KindUnsupportedVariant:
		return http.StatusUnprocessableEntity
	case errs.KindAccessDenied:
		return http.StatusForbidden
	case errs.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		// StorageInconsistency 属于服务端问题
		return http.StatusInternalServerError
	}
}
