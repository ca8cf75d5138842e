package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/saleshop/internal/config"
	"github.com/saleshop/internal/logger"
)

// HTTPService 购物会话 HTTP 接口
type HTTPService struct {
	server *http.Server

	mu       sync.Mutex
	bound    string
	listened chan struct{}
}

// NewHTTPService 按 server 配置创建 HTTP 服务
func NewHTTPService(cfg config.ServerConfig, handler http.Handler) *HTTPService {
	return &HTTPService{
		server: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout(),
			ReadTimeout:       secondsOrZero(cfg.ReadTimeoutSeconds),
			WriteTimeout:      secondsOrZero(cfg.WriteTimeoutSeconds),
			IdleTimeout:       secondsOrZero(cfg.IdleTimeoutSeconds),
		},
		listened: make(chan struct{}),
	}
}

func secondsOrZero(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// Name 服务名称
func (s *HTTPService) Name() string {
	return "http"
}

// Addr 实际监听地址，监听前返回空串
func (s *HTTPService) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Listened 开始监听后关闭
func (s *HTTPService) Listened() <-chan struct{} {
	return s.listened
}

// Start 监听并阻塞处理请求，直到 Stop
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.bound = ln.Addr().String()
	s.mu.Unlock()
	close(s.listened)
	logger.Infow("http_listen",
		"addr", ln.Addr().String(),
		"read_header_timeout", s.server.ReadHeaderTimeout.String(),
	)
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭；超时后强制断开仍在推送的 SSE 连接
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warnw("http_shutdown_forced", "error", err)
		return s.server.Close()
	}
	return nil
}
