package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	handlershared "github.com/saleshop/internal/http/handlers/shared"
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/redis/go-redis/v9"
)

// 限流作用域，对应 Redis key 中的一段
const (
	ScopeSessionIssue    = "session"
	ScopeCheckoutSubmit  = "checkout_submit"
	ScopeCheckoutPayment = "checkout_payment"
)

const (
	defaultRateLimitMessage = "too many requests, retry in %d seconds"
	rateLimitUnavailableMsg = "rate limiter unavailable"
)

// RateLimitKeyFunc 返回限流主体，空串时回退到客户端 IP
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 窗口内同一主体最多 MaxRequests 次
type RateLimitRule struct {
	Scope         string
	WindowSeconds int
	MaxRequests   int
	Message       string // 含一个 %d 占位符，填充等待秒数
}

func (r RateLimitRule) enabled() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

func (r RateLimitRule) message(waitSeconds int) string {
	format := strings.TrimSpace(r.Message)
	if format == "" {
		format = defaultRateLimitMessage
	}
	return fmt.Sprintf(format, waitSeconds)
}

// 固定窗口计数：首次计数时设置过期，返回 {count, ttl}
var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimiter 保护会话签发与结账提交的 Redis 限流器；未配置 Redis 时放行全部请求
type RateLimiter struct {
	client *redis.Client
	prefix string
}

// NewRateLimiter 创建限流器，key 形如 <prefix>:rate:<scope>:<subject>
func NewRateLimiter(client *redis.Client, prefix string) *RateLimiter {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "saleshop"
	}
	return &RateLimiter{client: client, prefix: prefix}
}

// Key 主体在某作用域下的 Redis key
func (l *RateLimiter) Key(scope, subject string) string {
	return fmt.Sprintf("%s:rate:%s:%s", l.prefix, scope, subject)
}

// Middleware 按规则限流
func (l *RateLimiter) Middleware(rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.client == nil || !rule.enabled() {
			c.Next()
			return
		}
		subject := ""
		if keyFunc != nil {
			subject = strings.TrimSpace(keyFunc(c))
		}
		if subject == "" {
			subject = c.ClientIP()
		}

		allowed, waitSeconds, err := l.allow(c.Request.Context(), l.Key(rule.Scope, subject), rule)
		if err != nil {
			logger.Warnw("rate_limit_unavailable", "scope", rule.Scope, "error", err)
			response.Error(c, response.CodeInternal, rateLimitUnavailableMsg)
			c.Abort()
			return
		}
		if !allowed {
			logger.Debugw("rate_limited", "scope", rule.Scope, "subject", subject, "retry_after", waitSeconds)
			c.Header("Retry-After", strconv.Itoa(waitSeconds))
			response.Error(c, response.CodeTooManyRequests, rule.message(waitSeconds))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(ctx context.Context, key string, rule RateLimitRule) (bool, int, error) {
	values, err := rateLimitScript.Run(ctx, l.client, []string{key}, rule.WindowSeconds).Int64Slice()
	if err != nil {
		return false, 0, err
	}
	if len(values) < 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(values))
	}
	if values[0] <= int64(rule.MaxRequests) {
		return true, 0, nil
	}
	wait := int(values[1])
	if wait < 1 {
		wait = rule.WindowSeconds
	}
	return false, wait, nil
}

// KeyByIP 使用客户端 IP 作为限流主体
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// SessionKey 使用会话 ID 作为限流主体，未鉴权时回退到 IP
func SessionKey(c *gin.Context) string {
	if value, ok := c.Get(handlershared.SessionIDContextKey); ok {
		if id, ok := value.(string); ok && strings.TrimSpace(id) != "" {
			return id
		}
	}
	return c.ClientIP()
}

type paymentPhoneBody struct {
	PhoneNumber string `json:"phoneNumber"`
}

// KeyByPaymentPhone 以付款手机号 + 会话作为限流主体，同一号码跨会话各自计数；
// 请求体通过 ShouldBindBodyWith 缓存，处理器需用同一方式读取
func KeyByPaymentPhone(c *gin.Context) string {
	session := SessionKey(c)
	var body paymentPhoneBody
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
		return session
	}
	phone := digitsOnly(body.PhoneNumber)
	if phone == "" {
		return session
	}
	return phone + "|" + session
}

func digitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
