package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anoixa/asset-store/utils/validator"
)

const (
	// HeaderUserID 上游认证层注入的调用方标识
	HeaderUserID = "X-User-ID"

	ContextUserIDKey = "user_id"
)

// Identity 读取调用方标识放入上下文
// 认证由上游网关完成，这里只做格式校验，非法值视为匿名
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" && validator.IsIdentifier(id) {
			c.Set(ContextUserIDKey, id)
		}
		c.Next()
	}
}

// UserID 返回调用方标识，匿名时为空
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserIDKey)
}
