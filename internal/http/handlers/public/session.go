package public

import (
	"strings"
	"time"

	handlershared "github.com/saleshop/internal/http/handlers/shared"
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateSessionRequest 创建会话请求；携带旧令牌时恢复其会话与购物车
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// SessionResponse 会话响应
type SessionResponse struct {
	SessionID string           `json:"session_id"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Cart      service.CartView `json:"cart"`
}

// CreateSession 创建购物会话并签发令牌
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return
		}
	}
	if h.SessionManager == nil || h.SessionTokens == nil {
		respondError(c, response.CodeServiceUnavailable, "session manager unavailable", nil)
		return
	}

	var session *service.Session
	previousID := strings.TrimSpace(req.SessionID)
	if previousID != "" {
		if _, err := uuid.Parse(previousID); err != nil {
			respondError(c, response.CodeBadRequest, "session id invalid", nil)
			return
		}
	}
	previousToken := strings.TrimSpace(req.Token)
	if previousToken == "" {
		previousToken, _ = handlershared.BearerToken(c)
	}
	switch {
	case previousToken != "":
		restored, ok := h.resumeSession(c, previousToken, previousID)
		if !ok {
			return
		}
		session = restored
	case previousID != "":
		respondError(c, response.CodeUnauthorized, "previous session token required", nil)
		return
	default:
		session = h.SessionManager.Create(c.Request.Context())
	}

	token, expiresAt, err := h.SessionTokens.Issue(session.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "token issue failed", err)
		return
	}
	response.Success(c, SessionResponse{
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt,
		Cart:      session.CartView(),
	})
}

// resumeSession 仅恢复旧令牌声明中的会话
func (h *Handler) resumeSession(c *gin.Context, previousToken, previousID string) (*service.Session, bool) {
	claims, err := h.SessionTokens.ParseForResume(previousToken)
	if err != nil {
		logger.Debugw("session_resume_rejected", "error", err)
		respondError(c, response.CodeUnauthorized, "session token invalid", nil)
		return nil, false
	}
	if previousID != "" && previousID != claims.SessionID {
		respondError(c, response.CodeUnauthorized, "session token does not match session id", nil)
		return nil, false
	}
	restored, err := h.SessionManager.Resume(c.Request.Context(), claims.SessionID)
	if err != nil {
		respondError(c, response.CodeUnauthorized, "session restore failed", err)
		return nil, false
	}
	return restored, true
}
