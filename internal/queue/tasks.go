package queue

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/saleshop/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderConfirmed 订单确认回执归档任务
	TaskOrderConfirmed = constants.TaskOrderConfirmed
)

// ErrInvalidPayload 任务载荷缺少必填字段
var ErrInvalidPayload = errors.New("queue payload invalid")

// OrderConfirmedPayload 订单确认任务载荷
type OrderConfirmedPayload struct {
	OrderID     string    `json:"order_id"`
	SessionID   string    `json:"session_id"`
	Channel     string    `json:"channel"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
	ItemCount   int       `json:"item_count"`
	Email       string    `json:"email,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Validate 校验载荷
func (p OrderConfirmedPayload) Validate() error {
	if strings.TrimSpace(p.OrderID) == "" || strings.TrimSpace(p.Channel) == "" {
		return ErrInvalidPayload
	}
	return nil
}

// NewOrderConfirmedTask 创建订单确认任务
func NewOrderConfirmedTask(payload OrderConfirmedPayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderConfirmed, body, asynq.MaxRetry(constants.TaskOrderConfirmedRetry)), nil
}

// ParseOrderConfirmedPayload 解析订单确认任务载荷
func ParseOrderConfirmedPayload(body []byte) (OrderConfirmedPayload, error) {
	var payload OrderConfirmedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return OrderConfirmedPayload{}, err
	}
	return payload, payload.Validate()
}
