package service

import (
	"sync"
	"time"

	"github.com/saleshop/internal/logger"
)

// Event 会话状态变更通知
type Event struct {
	Name       string                 `json:"name"`
	SessionID  string                 `json:"session_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Notifier 事件分发器，渲染层通过 Subscribe 订阅
type Notifier struct {
	mu        sync.RWMutex
	sessionID string
	nextID    int
	handlers  map[int]func(Event)
	// hook 进程内钩子（回执入队），不计入订阅者
	hook func(Event)
}

// NewNotifier 创建事件分发器
func NewNotifier(sessionID string) *Notifier {
	return &Notifier{
		sessionID: sessionID,
		handlers:  make(map[int]func(Event)),
	}
}

// Subscribe 订阅事件，返回取消函数
func (n *Notifier) Subscribe(fn func(Event)) func() {
	if n == nil || fn == nil {
		return func() {}
	}
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.handlers, id)
			n.mu.Unlock()
		})
	}
}

// Publish 同步分发事件；订阅者 panic 不影响其他订阅者
func (n *Notifier) Publish(name string, data map[string]interface{}) {
	if n == nil {
		return
	}
	event := Event{
		Name:       name,
		SessionID:  n.sessionID,
		Data:       data,
		OccurredAt: time.Now(),
	}
	n.mu.RLock()
	handlers := make([]func(Event), 0, len(n.handlers))
	for _, fn := range n.handlers {
		handlers = append(handlers, fn)
	}
	n.mu.RUnlock()

	if n.hook != nil {
		dispatch(n.hook, event)
	}
	for _, fn := range handlers {
		dispatch(fn, event)
	}
}

// Subscribers 当前外部订阅者数量（如 SSE 连接）
func (n *Notifier) Subscribers() int {
	if n == nil {
		return 0
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.handlers)
}

func dispatch(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("event_subscriber_panic",
				"event", event.Name,
				"session_id", event.SessionID,
				"panic", r,
			)
		}
	}()
	fn(event)
}

func (n *Notifier) sessionIDOrEmpty() string {
	if n == nil {
		return ""
	}
	return n.sessionID
}
