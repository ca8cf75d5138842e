package public

import (
	"errors"

	handlershared "github.com/saleshop/internal/http/handlers/shared"
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/service"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

// currentSession 按令牌中的会话 ID 取回会话；会话已被回收时重建并重新加载购物车
func (h *Handler) currentSession(c *gin.Context) (*service.Session, bool) {
	sessionID, ok := handlershared.GetSessionID(c)
	if !ok {
		return nil, false
	}
	if h.SessionManager == nil {
		respondError(c, response.CodeServiceUnavailable, "session manager unavailable", nil)
		return nil, false
	}
	session, err := h.SessionManager.Resume(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			respondError(c, response.CodeUnauthorized, "session not found", nil)
			return nil, false
		}
		respondError(c, response.CodeInternal, "session restore failed", err)
		return nil, false
	}
	return session, true
}

func productIDParam(c *gin.Context) (models.ProductID, bool) {
	id := models.ProductID(c.Param("id"))
	if id == "" {
		respondError(c, response.CodeBadRequest, "product id required", nil)
		return "", false
	}
	return id, true
}
