package shared

import (
	"strings"

	"github.com/saleshop/internal/http/response"

	"github.com/gin-gonic/gin"
)

// SessionIDContextKey 鉴权中间件写入的会话 ID 键名
const SessionIDContextKey = "session_id"

// BearerToken 读取 Authorization: Bearer 令牌
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(c.GetHeader("Authorization")), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// GetSessionID 从上下文读取会话 ID 并统一处理错误响应。
func GetSessionID(c *gin.Context) (string, bool) {
	value, exists := c.Get(SessionIDContextKey)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return "", false
	}
	id, ok := value.(string)
	if !ok {
		RespondError(c, response.CodeInternal, "session id type invalid", nil)
		return "", false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return "", false
	}
	return id, true
}
