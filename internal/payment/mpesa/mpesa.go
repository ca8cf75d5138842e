package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid   = errors.New("mpesa config invalid")
	ErrPhoneInvalid    = errors.New("mpesa phone number invalid")
	ErrAmountInvalid   = errors.New("mpesa amount invalid")
	ErrRequestFailed   = errors.New("mpesa request failed")
	ErrResponseInvalid = errors.New("mpesa response invalid")
)

const defaultTimeout = 15 * time.Second

// 本地手机号格式：07 开头 + 8 位数字
var phonePattern = regexp.MustCompile(`^07\d{8}$`)

// Config STK 推送网关配置
type Config struct {
	Endpoint string        // 发起地址，如 http://localhost:8080/lipaNaMpesa
	Timeout  time.Duration // 请求超时
}

// STKPushInput 发起支付输入
type STKPushInput struct {
	PhoneNumber string
	Amount      decimal.Decimal
}

// STKPushResult 发起结果
type STKPushResult struct {
	Message    string                 // 网关返回的文本或 message 字段
	CheckoutID string                 // 网关返回的请求ID（如有）
	Raw        map[string]interface{} // 原始 JSON 响应（非 JSON 时为空）
}

// Client STK 推送客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrConfigInvalid)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ValidatePhone 校验手机号格式
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return ErrPhoneInvalid
	}
	return nil
}

// STKPush 发起 STK 推送，格式不合法的手机号不会发出请求
func (c *Client) STKPush(ctx context.Context, input STKPushInput) (*STKPushResult, error) {
	if c == nil {
		return nil, ErrConfigInvalid
	}
	if err := ValidatePhone(input.PhoneNumber); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrAmountInvalid, input.Amount.String())
	}

	// 网关按数字读取金额
	amount, _ := input.Amount.Float64()
	params := map[string]interface{}{
		"phoneNumber": input.PhoneNumber,
		"amount":      amount,
	}
	respBytes, err := c.postJSON(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	return parseResponse(respBytes)
}

func parseResponse(body []byte) (*STKPushResult, error) {
	text := strings.TrimSpace(string(body))
	result := &STKPushResult{Message: text}
	if text == "" || !strings.HasPrefix(text, "{") {
		return result, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	result.Raw = raw
	if msg, ok := raw["message"].(string); ok && msg != "" {
		result.Message = msg
	} else if msg, ok := raw["ResponseDescription"].(string); ok && msg != "" {
		result.Message = msg
	}
	if id, ok := raw["CheckoutRequestID"].(string); ok {
		result.CheckoutID = id
	}
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, params map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return respBody, nil
}
