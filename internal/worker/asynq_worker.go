package worker

import (
	"context"
	"strings"
	"time"

	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/provider"
	"github.com/saleshop/internal/queue"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderConfirmed, c.handleOrderConfirmed)
}

// handleOrderConfirmed 归档订单回执；同一订单号与渠道只写入一次
func (c *Consumer) handleOrderConfirmed(_ context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_order_confirmed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseOrderConfirmedPayload(task.Payload())
	if err != nil {
		logger.Warnw("worker_order_confirmed_payload_invalid", "error", err)
		return asynq.SkipRetry
	}
	if c.OrderReceiptRepo == nil {
		logger.Warnw("worker_order_confirmed_skip_repo_nil", "order_id", payload.OrderID)
		return nil
	}

	existing, err := c.OrderReceiptRepo.GetByOrderID(payload.OrderID, payload.Channel)
	if err != nil {
		logger.Warnw("worker_order_confirmed_fetch_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if existing != nil {
		logger.Debugw("worker_order_confirmed_skip_exists", "order_id", payload.OrderID, "receipt_no", existing.ReceiptNo)
		return nil
	}

	receipt := buildOrderReceipt(payload, time.Now())
	if err := c.OrderReceiptRepo.Create(receipt); err != nil {
		logger.Warnw("worker_order_confirmed_create_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	logger.Infow("worker_order_confirmed_archived",
		"order_id", receipt.OrderID,
		"receipt_no", receipt.ReceiptNo,
		"channel", receipt.Channel,
		"session_id", receipt.SessionID,
	)
	return nil
}

func buildOrderReceipt(payload queue.OrderConfirmedPayload, now time.Time) *models.OrderReceipt {
	total, err := models.ParseMoney(strings.TrimSpace(payload.Total))
	if err != nil {
		logger.Warnw("worker_order_confirmed_total_invalid", "order_id", payload.OrderID, "total", payload.Total)
		total = models.ZeroMoney
	}
	confirmedAt := payload.ConfirmedAt
	if confirmedAt.IsZero() {
		confirmedAt = now
	}
	return &models.OrderReceipt{
		ReceiptNo:   "RCP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")),
		OrderID:     strings.TrimSpace(payload.OrderID),
		SessionID:   strings.TrimSpace(payload.SessionID),
		Channel:     strings.TrimSpace(payload.Channel),
		Currency:    strings.TrimSpace(payload.Currency),
		TotalAmount: total,
		ItemCount:   payload.ItemCount,
		Email:       strings.TrimSpace(payload.Email),
		ConfirmedAt: confirmedAt,
	}
}
