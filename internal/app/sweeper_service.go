package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/saleshop/internal/service"
)

// SweeperService 周期回收空闲购物会话
type SweeperService struct {
	manager  *service.SessionManager
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeperService 创建会话回收服务
func NewSweeperService(manager *service.SessionManager, interval time.Duration) *SweeperService {
	return &SweeperService{manager: manager, interval: interval}
}

// Name 服务名称
func (s *SweeperService) Name() string {
	return "session_sweeper"
}

// Start 阻塞运行直到 ctx 结束或 Stop 被调用
func (s *SweeperService) Start(ctx context.Context) error {
	if s == nil || s.manager == nil {
		return errors.New("session manager not initialized")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer close(done)
	s.manager.Run(runCtx, s.interval)
	return nil
}

// Stop 停止服务
func (s *SweeperService) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
