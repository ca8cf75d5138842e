package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/service"
)

// OrderClient 通过 HTTP POST 提交订单记录
type OrderClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewOrderClient 创建订单客户端
func NewOrderClient(endpoint string, timeout time.Duration) *OrderClient {
	return &OrderClient{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: newHTTPClient(timeout),
	}
}

// SubmitOrder 实现 service.OrderSubmitter；任何失败都返回 ErrSubmission，不模拟成功
func (c *OrderClient) SubmitOrder(ctx context.Context, record models.OrderRecord) (*service.SubmitResult, error) {
	body, err := postJSON(ctx, c.httpClient, c.endpoint, record)
	if err != nil {
		logger.Warnw("order_submit_request_failed",
			"endpoint", c.endpoint,
			"order_id", record.OrderID,
			"error", err,
		)
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: rejected: %v", service.ErrSubmission, err)
		}
		return nil, fmt.Errorf("%w: %w: %v", service.ErrSubmission, service.ErrNetwork, err)
	}
	return parseSubmitResponse(body, record.OrderID)
}

func parseSubmitResponse(body []byte, fallbackOrderID string) (*service.SubmitResult, error) {
	result := &service.SubmitResult{OrderID: fallbackOrderID}
	text := strings.TrimSpace(string(body))
	if text == "" || !strings.HasPrefix(text, "{") {
		return result, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", service.ErrSubmission, err)
	}
	result.Raw = raw
	if success, ok := raw["success"].(bool); ok && !success {
		msg, _ := raw["message"].(string)
		return nil, fmt.Errorf("%w: rejected: %s", service.ErrSubmission, msg)
	}
	if orderID, ok := raw["orderId"].(string); ok && strings.TrimSpace(orderID) != "" {
		result.OrderID = orderID
	}
	return result, nil
}
