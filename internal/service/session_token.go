package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSessionToken 会话令牌无效
var ErrInvalidSessionToken = errors.New("session token invalid")

// SessionClaims 会话令牌声明
type SessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// defaultResumeGrace 令牌过期后仍可用于恢复会话的时长
const defaultResumeGrace = 7 * 24 * time.Hour

// SessionTokenService 会话令牌签发与解析
type SessionTokenService struct {
	secret      []byte
	expireHours int
	resumeGrace time.Duration
}

// NewSessionTokenService 创建令牌服务
func NewSessionTokenService(secret string, expireHours int) *SessionTokenService {
	if expireHours <= 0 {
		expireHours = 72
	}
	return &SessionTokenService{
		secret:      []byte(secret),
		expireHours: expireHours,
		resumeGrace: defaultResumeGrace,
	}
}

// WithResumeGrace 设置过期令牌的恢复宽限期，非正数时沿用默认值
func (s *SessionTokenService) WithResumeGrace(grace time.Duration) *SessionTokenService {
	if grace > 0 {
		s.resumeGrace = grace
	}
	return s
}

// Issue 签发会话令牌
func (s *SessionTokenService) Issue(sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(s.expireHours) * time.Hour)

	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Parse 解析会话令牌
func (s *SessionTokenService) Parse(tokenString string) (*SessionClaims, error) {
	return s.parse(tokenString, 0)
}

// ParseForResume 解析用于恢复会话的旧令牌，过期不超过宽限期仍视为有效
func (s *SessionTokenService) ParseForResume(tokenString string) (*SessionClaims, error) {
	return s.parse(tokenString, s.resumeGrace)
}

func (s *SessionTokenService) parse(tokenString string, leeway time.Duration) (*SessionClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidSessionToken
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if leeway > 0 {
		options = append(options, jwt.WithLeeway(leeway))
	}
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSessionToken, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}
