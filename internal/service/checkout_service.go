package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/saleshop/internal/constants"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
)

// SubmitResult 订单后端返回
type SubmitResult struct {
	OrderID string                 `json:"orderId"`
	Raw     map[string]interface{} `json:"raw,omitempty"`
}

// OrderSubmitter 订单提交协作方
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, record models.OrderRecord) (*SubmitResult, error)
}

// PaymentAck 支付发起回执
type PaymentAck struct {
	PhoneNumber string       `json:"phoneNumber"`
	Amount      models.Money `json:"amount"`
	Message     string       `json:"message,omitempty"`
	Reference   string       `json:"reference,omitempty"`
}

// PaymentInitiator 支付发起协作方
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, phoneNumber string, amount models.Money) (*PaymentAck, error)
}

// CheckoutView 结账弹窗展示快照
type CheckoutView struct {
	State     string            `json:"state"`
	Items     []models.LineItem `json:"items"`
	Summary   OrderSummary      `json:"summary"`
	Currency  string            `json:"currency,omitempty"`
	OrderID   string            `json:"orderId,omitempty"`
	LastError string            `json:"lastError,omitempty"`
}

// OrderConfirmation 订单确认结果
type OrderConfirmation struct {
	OrderID     string             `json:"orderId"`
	Record      models.OrderRecord `json:"record"`
	Result      *SubmitResult      `json:"result,omitempty"`
	ConfirmedAt time.Time          `json:"confirmedAt"`
}

// CheckoutOptions 结账状态机可选配置
type CheckoutOptions struct {
	Currency  string
	Submitter OrderSubmitter
	Payments  PaymentInitiator
	Now       func() time.Time
}

var allowedCheckoutTransitions = map[string]map[string]bool{
	constants.CheckoutStateClosed: {
		constants.CheckoutStateOpen: true,
	},
	constants.CheckoutStateOpen: {
		constants.CheckoutStateSubmitting: true,
		constants.CheckoutStateClosed:     true,
	},
	constants.CheckoutStateSubmitting: {
		constants.CheckoutStateConfirmed: true,
		constants.CheckoutStateFailed:    true,
	},
	constants.CheckoutStateFailed: {
		constants.CheckoutStateSubmitting: true,
		constants.CheckoutStateOpen:       true,
		constants.CheckoutStateClosed:     true,
	},
	constants.CheckoutStateConfirmed: {
		constants.CheckoutStateClosed: true,
	},
}

// CheckoutMachine 结账状态机：closed → open → submitting → {confirmed, failed}
type CheckoutMachine struct {
	mu        sync.Mutex
	state     string
	view      CheckoutView
	lastErr   error
	ledger    *CartLedger
	policy    PricingPolicy
	notifier  *Notifier
	currency  string
	submitter OrderSubmitter
	payments  PaymentInitiator
	now       func() time.Time
	lastID    string
}

// NewCheckoutMachine 创建结账状态机
func NewCheckoutMachine(ledger *CartLedger, policy PricingPolicy, notifier *Notifier, opts CheckoutOptions) *CheckoutMachine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CheckoutMachine{
		state:     constants.CheckoutStateClosed,
		ledger:    ledger,
		policy:    policy,
		notifier:  notifier,
		currency:  strings.TrimSpace(opts.Currency),
		submitter: opts.Submitter,
		payments:  opts.Payments,
		now:       now,
	}
}

// State 当前状态
func (m *CheckoutMachine) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError 最近一次提交失败原因
func (m *CheckoutMachine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// View 当前展示快照
func (m *CheckoutMachine) View() CheckoutView {
	m.mu.Lock()
	defer m.mu.Unlock()
	view := m.view
	view.State = m.state
	view.Items = append([]models.LineItem(nil), m.view.Items...)
	if view.Items == nil {
		view.Items = []models.LineItem{}
	}
	return view
}

// Open 仅允许从 closed 打开；购物车为空时返回 ErrEmptyCart 并保持 closed
func (m *CheckoutMachine) Open() (CheckoutView, error) {
	m.mu.Lock()
	if m.state != constants.CheckoutStateClosed {
		state := m.state
		m.mu.Unlock()
		return CheckoutView{}, fmt.Errorf("%w: open from %s", ErrInvalidTransition, state)
	}
	if m.ledger.IsEmpty() {
		m.mu.Unlock()
		return CheckoutView{}, ErrEmptyCart
	}
	m.lastErr = nil
	m.lastID = ""
	m.snapshotLocked()
	from := m.transitionLocked(constants.CheckoutStateOpen)
	m.mu.Unlock()

	m.publishState(from, constants.CheckoutStateOpen)
	return m.View(), nil
}

// Refresh 结账打开期间购物车变更后重新计算快照
func (m *CheckoutMachine) Refresh() (CheckoutView, error) {
	m.mu.Lock()
	if m.state != constants.CheckoutStateOpen && m.state != constants.CheckoutStateFailed {
		state := m.state
		m.mu.Unlock()
		return CheckoutView{}, fmt.Errorf("%w: refresh in %s", ErrInvalidTransition, state)
	}
	m.snapshotLocked()
	m.mu.Unlock()
	return m.View(), nil
}

// Resume 提交失败后回到 open 继续编辑
func (m *CheckoutMachine) Resume() (CheckoutView, error) {
	m.mu.Lock()
	if m.state != constants.CheckoutStateFailed {
		state := m.state
		m.mu.Unlock()
		return CheckoutView{}, fmt.Errorf("%w: resume from %s", ErrInvalidTransition, state)
	}
	m.snapshotLocked()
	from := m.transitionLocked(constants.CheckoutStateOpen)
	m.mu.Unlock()

	m.publishState(from, constants.CheckoutStateOpen)
	return m.View(), nil
}

// Cancel 从 open 或 failed 回到 closed，不修改购物车
func (m *CheckoutMachine) Cancel() error {
	m.mu.Lock()
	if m.state != constants.CheckoutStateOpen && m.state != constants.CheckoutStateFailed {
		state := m.state
		m.mu.Unlock()
		if state == constants.CheckoutStateSubmitting {
			return fmt.Errorf("%w: cancel while submitting", ErrInvalidTransition)
		}
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, state)
	}
	from := m.transitionLocked(constants.CheckoutStateClosed)
	m.view = CheckoutView{}
	m.mu.Unlock()

	m.publishState(from, constants.CheckoutStateClosed)
	return nil
}

// Submit 校验客户信息并提交订单；网络调用期间不持有锁
func (m *CheckoutMachine) Submit(ctx context.Context, customer models.Customer, address models.ShippingAddress) (*OrderConfirmation, error) {
	customer = normalizeCustomer(customer)
	address = normalizeAddress(address)

	m.mu.Lock()
	if err := m.ensureSubmittableLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := validateCheckoutInput(customer, address); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	items := m.ledger.Items()
	if len(items) == 0 {
		m.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if m.submitter == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: order submitter not configured", ErrSubmission)
	}
	customer.PhoneNumber = FormatContactPhone(customer.PhoneNumber)
	summary := ComputeSummary(items, m.policy)
	record := m.buildRecordLocked(items, summary, customer, address)
	m.view.OrderID = record.OrderID
	from := m.transitionLocked(constants.CheckoutStateSubmitting)
	m.mu.Unlock()
	m.publishState(from, constants.CheckoutStateSubmitting)

	result, err := m.submitter.SubmitOrder(ctx, record)
	if err != nil {
		return nil, m.fail(record.OrderID, err)
	}

	confirmation := &OrderConfirmation{
		OrderID:     record.OrderID,
		Record:      record,
		Result:      result,
		ConfirmedAt: m.now(),
	}
	m.confirm(ctx, map[string]interface{}{
		"order_id":   record.OrderID,
		"channel":    constants.ReceiptChannelOrder,
		"total":      record.Total.String(),
		"currency":   record.Currency,
		"item_count": summary.ItemCount,
		"email":      customer.Email,
	}, constants.EventOrderConfirmed)
	return confirmation, nil
}

// InitiatePayment 手机号 STK 推送支付：金额取当前总额，非法手机号不会发出请求
func (m *CheckoutMachine) InitiatePayment(ctx context.Context, phoneNumber string) (*PaymentAck, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)

	m.mu.Lock()
	if err := m.ensureSubmittableLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := validatePaymentPhone(phoneNumber); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	items := m.ledger.Items()
	if len(items) == 0 {
		m.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if m.payments == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: payment initiator not configured", ErrSubmission)
	}
	summary := ComputeSummary(items, m.policy)
	paymentID := m.nextOrderIDLocked()
	m.view.OrderID = paymentID
	from := m.transitionLocked(constants.CheckoutStateSubmitting)
	m.mu.Unlock()
	m.publishState(from, constants.CheckoutStateSubmitting)

	ack, err := m.payments.InitiatePayment(ctx, phoneNumber, summary.Total)
	if err != nil {
		return nil, m.fail(paymentID, err)
	}
	if ack == nil {
		ack = &PaymentAck{}
	}
	ack.PhoneNumber = phoneNumber
	ack.Amount = summary.Total

	m.confirm(ctx, map[string]interface{}{
		"order_id":   paymentID,
		"channel":    constants.ReceiptChannelPayment,
		"total":      summary.Total.String(),
		"currency":   m.currency,
		"item_count": summary.ItemCount,
		"reference":  ack.Reference,
	}, constants.EventPaymentInitiated)
	return ack, nil
}

func (m *CheckoutMachine) ensureSubmittableLocked() error {
	switch m.state {
	case constants.CheckoutStateSubmitting:
		return ErrAlreadyInProgress
	case constants.CheckoutStateOpen, constants.CheckoutStateFailed:
		return nil
	default:
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, m.state)
	}
}

// fail 提交失败：进入 failed，保留购物车供重试
func (m *CheckoutMachine) fail(orderID string, cause error) error {
	err := cause
	if !errors.Is(err, ErrSubmission) {
		err = fmt.Errorf("%w: %v", ErrSubmission, cause)
	}
	logger.Warnw("checkout_submit_failed",
		"session_id", m.notifier.sessionIDOrEmpty(),
		"order_id", orderID,
		"error", cause,
	)

	m.mu.Lock()
	m.lastErr = err
	m.view.LastError = err.Error()
	m.snapshotLocked()
	from := m.transitionLocked(constants.CheckoutStateFailed)
	m.mu.Unlock()

	m.publishState(from, constants.CheckoutStateFailed)
	return err
}

// confirm 提交成功：confirmed → 清空购物车（写穿） → closed
func (m *CheckoutMachine) confirm(ctx context.Context, data map[string]interface{}, eventName string) {
	m.mu.Lock()
	m.lastErr = nil
	from := m.transitionLocked(constants.CheckoutStateConfirmed)
	m.mu.Unlock()
	m.publishState(from, constants.CheckoutStateConfirmed)

	m.ledger.Clear(ctx)

	m.mu.Lock()
	from = m.transitionLocked(constants.CheckoutStateClosed)
	m.view = CheckoutView{}
	m.mu.Unlock()
	m.publishState(from, constants.CheckoutStateClosed)

	logger.Infow("checkout_confirmed",
		"session_id", m.notifier.sessionIDOrEmpty(),
		"order_id", data["order_id"],
		"channel", data["channel"],
		"total", data["total"],
	)
	m.notifier.Publish(eventName, data)
}

func (m *CheckoutMachine) snapshotLocked() {
	items := m.ledger.Items()
	m.view.Items = items
	m.view.Summary = ComputeSummary(items, m.policy)
	m.view.Currency = m.currency
}

// transitionLocked 切换状态并返回原状态；非法切换属于内部错误，仅记录日志
func (m *CheckoutMachine) transitionLocked(target string) string {
	from := m.state
	if !isCheckoutTransitionAllowed(from, target) {
		logger.Errorw("checkout_transition_rejected", "from", from, "to", target)
	}
	m.state = target
	return from
}

func (m *CheckoutMachine) publishState(from, to string) {
	m.notifier.Publish(constants.EventCheckoutStateChanged, map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

func (m *CheckoutMachine) buildRecordLocked(items []models.LineItem, summary OrderSummary, customer models.Customer, address models.ShippingAddress) models.OrderRecord {
	recordItems := make([]models.OrderRecordItem, 0, len(items))
	for _, item := range items {
		recordItems = append(recordItems, models.OrderRecordItem{
			ID:       item.ProductID,
			Name:     item.Name,
			Price:    item.UnitPrice,
			Quantity: item.Quantity,
			Total:    item.LineTotal(),
		})
	}
	return models.OrderRecord{
		OrderID:         m.nextOrderIDLocked(),
		OrderDate:       m.now().UTC(),
		Items:           recordItems,
		Subtotal:        summary.Subtotal,
		Shipping:        summary.ShippingCost,
		Tax:             summary.Tax,
		Total:           summary.Total,
		Currency:        m.currency,
		Customer:        customer,
		ShippingAddress: address,
	}
}

// nextOrderIDLocked 每次提交尝试都生成新的订单号，不与上一次重复
func (m *CheckoutMachine) nextOrderIDLocked() string {
	id := generateOrderID(m.now())
	for id == m.lastID {
		id = generateOrderID(m.now())
	}
	m.lastID = id
	return id
}

func isCheckoutTransitionAllowed(current, target string) bool {
	nexts, ok := allowedCheckoutTransitions[current]
	if !ok {
		return false
	}
	return nexts[target]
}

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// generateOrderID 格式 ORD-<毫秒时间戳>-<5 位大写 base36 随机串>
func generateOrderID(now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", constants.OrderIDPrefix, now.UnixMilli(), randBase36(constants.OrderIDRandomLength))
}

func randBase36(length int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(base36Upper)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(base36Upper[n.Int64()])
	}
	return b.String()
}
