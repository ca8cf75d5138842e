package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/saleshop/internal/constants"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"

	"github.com/google/uuid"
)

// SessionDeps 会话依赖
type SessionDeps struct {
	Slot        CartSlot
	CartKey     string
	Catalog     CatalogSource
	Submitter   OrderSubmitter
	Payments    PaymentInitiator
	Policy      PricingPolicy
	Currency    string
	Symbol      string
	IdleTimeout time.Duration
	// OnEvent 每个会话事件的全局钩子（如回执入队）
	OnEvent func(Event)
}

// Session 单个购物会话：目录、购物车、结账状态机与事件分发器
type Session struct {
	ID        string
	CreatedAt time.Time
	Catalog   *CatalogStore
	Cart      *CartLedger
	Checkout  *CheckoutMachine
	Notifier  *Notifier
	policy    PricingPolicy
	symbol    string

	mu       sync.Mutex
	lastSeen time.Time
}

// CartView 购物车展示数据
type CartView struct {
	Items         []models.LineItem `json:"items"`
	TotalQuantity int               `json:"totalQuantity"`
	Summary       OrderSummary      `json:"summary"`
	TotalDisplay  string            `json:"totalDisplay,omitempty"`
}

func newSession(ctx context.Context, id string, deps SessionDeps, now time.Time) *Session {
	notifier := NewNotifier(id)
	notifier.hook = deps.OnEvent
	persistence := NewCartPersistence(deps.Slot, cartSlotKey(deps.CartKey, id))
	ledger := NewCartLedger(ctx, persistence, notifier)
	checkout := NewCheckoutMachine(ledger, deps.Policy, notifier, CheckoutOptions{
		Currency:  deps.Currency,
		Submitter: deps.Submitter,
		Payments:  deps.Payments,
	})
	return &Session{
		ID:        id,
		CreatedAt: now,
		Catalog:   NewCatalogStore(deps.Catalog),
		Cart:      ledger,
		Checkout:  checkout,
		Notifier:  notifier,
		policy:    deps.Policy,
		symbol:    deps.Symbol,
		lastSeen:  now,
	}
}

func cartSlotKey(base, sessionID string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = constants.DefaultCartKey
	}
	return fmt.Sprintf("%s:%s", base, sessionID)
}

// LoadCatalog 拉取目录并发出 catalog_loaded / catalog_failed
func (s *Session) LoadCatalog(ctx context.Context) ([]models.Product, error) {
	products, err := s.Catalog.Refresh(ctx)
	if errors.Is(err, ErrStaleCatalog) {
		return nil, err
	}
	if err != nil {
		logger.ForSession(s.ID).Warnw("catalog_load_failed", "error", err)
		s.Notifier.Publish(constants.EventCatalogFailed, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}
	s.Notifier.Publish(constants.EventCatalogLoaded, map[string]interface{}{
		"count": len(products),
	})
	return products, nil
}

// AddToCart 从目录解析商品后加入购物车
func (s *Session) AddToCart(ctx context.Context, productID models.ProductID) (models.LineItem, error) {
	product, ok := s.Catalog.Find(productID)
	if !ok {
		return models.LineItem{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err := s.Cart.AddProduct(ctx, product); err != nil {
		return models.LineItem{}, err
	}
	s.refreshCheckout()
	item, _ := s.Cart.Find(productID)
	return item, nil
}

// RemoveFromCart 删除行项目
func (s *Session) RemoveFromCart(ctx context.Context, productID models.ProductID) bool {
	changed := s.Cart.RemoveItem(ctx, productID)
	if changed {
		s.refreshCheckout()
	}
	return changed
}

// IncrementItem 数量 +1
func (s *Session) IncrementItem(ctx context.Context, productID models.ProductID) bool {
	changed := s.Cart.Increment(ctx, productID)
	if changed {
		s.refreshCheckout()
	}
	return changed
}

// DecrementItem 数量 -1（最少为 1）
func (s *Session) DecrementItem(ctx context.Context, productID models.ProductID) bool {
	changed := s.Cart.Decrement(ctx, productID)
	if changed {
		s.refreshCheckout()
	}
	return changed
}

// ClearCart 清空购物车
func (s *Session) ClearCart(ctx context.Context) {
	s.Cart.Clear(ctx)
	s.refreshCheckout()
}

// CartView 购物车当前视图，汇总实时计算
func (s *Session) CartView() CartView {
	items := s.Cart.Items()
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	summary := ComputeSummary(items, s.policy)
	view := CartView{
		Items:         items,
		TotalQuantity: total,
		Summary:       summary,
	}
	if s.symbol != "" {
		view.TotalDisplay = summary.Total.FormatWithSymbol(s.symbol, 2)
	}
	return view
}

// refreshCheckout 结账打开期间购物车变化时重算快照
func (s *Session) refreshCheckout() {
	switch s.Checkout.State() {
	case constants.CheckoutStateOpen, constants.CheckoutStateFailed:
		_, _ = s.Checkout.Refresh()
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen 最近活跃时间
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionManager 会话管理：按 ID 保存会话，空闲超时后回收
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     SessionDeps
	now      func() time.Time
}

// NewSessionManager 创建会话管理器
func NewSessionManager(deps SessionDeps) *SessionManager {
	if strings.TrimSpace(deps.CartKey) == "" {
		deps.CartKey = constants.DefaultCartKey
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		deps:     deps,
		now:      time.Now,
	}
}

// Create 创建新会话，购物车从槽位加载一次
func (m *SessionManager) Create(ctx context.Context) *Session {
	return m.restore(ctx, uuid.NewString())
}

// Get 获取活跃会话
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.touch(m.now())
	return session, nil
}

// Resume 获取会话；已被回收时以同一 ID 重建并重新加载持久化的购物车
func (m *SessionManager) Resume(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if session, err := m.Get(id); err == nil {
		return session, nil
	}
	return m.restore(ctx, id), nil
}

func (m *SessionManager) restore(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		existing.touch(m.now())
		return existing
	}
	session := newSession(ctx, id, m.deps, m.now())
	m.sessions[id] = session
	logger.Infow("session_created",
		"session_id", id,
		"cart_lines", session.Cart.Len(),
	)
	return session
}

// Remove 移除会话
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len 活跃会话数量
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepIdle 回收空闲会话，返回回收数量；提交中或仍有事件订阅者的会话保留
func (m *SessionManager) SweepIdle() int {
	if m.deps.IdleTimeout <= 0 {
		return 0
	}
	deadline := m.now().Add(-m.deps.IdleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, session := range m.sessions {
		if session.LastSeen().After(deadline) {
			continue
		}
		if session.Checkout.State() == constants.CheckoutStateSubmitting {
			continue
		}
		if session.Notifier.Subscribers() > 0 {
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	if removed > 0 {
		logger.Debugw("session_sweep", "removed", removed, "remaining", len(m.sessions))
	}
	return removed
}

// Run 周期回收空闲会话，直到 ctx 结束
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SweepIdle()
		}
	}
}
