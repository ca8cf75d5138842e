package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/service"
)

// ErrNoServices 没有可运行的服务
var ErrNoServices = errors.New("no services to run")

// Service 进程内的长驻服务：会话 HTTP 接口、会话回收、回执 worker
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner 并行启动服务；任一服务退出或收到信号时按注册顺序停止全部服务
type Runner struct {
	services []Service
	sessions *service.SessionManager
}

type serviceExit struct {
	name string
	err  error
}

// NewRunner 创建服务运行器
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// WithSessions 停机时记录仍驻留内存的购物会话数
func (r *Runner) WithSessions(manager *service.SessionManager) *Runner {
	r.sessions = manager
	return r
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout)
}

// Run 启动全部服务并阻塞到退出
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration) error {
	if r == nil || len(r.services) == 0 {
		return ErrNoServices
	}
	for idx, svc := range r.services {
		if svc == nil {
			return fmt.Errorf("service #%d is nil", idx)
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exits := make(chan serviceExit, len(r.services))
	for _, svc := range r.services {
		go func(svc Service) {
			logger.Infow("service_start", "service", svc.Name())
			exits <- serviceExit{name: svc.Name(), err: svc.Start(ctx)}
		}(svc)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Infow("service_shutdown_requested", "reason", ctx.Err())
		runErr = ctx.Err()
	case exit := <-exits:
		if exit.err != nil {
			logger.Errorw("service_exit", "service", exit.name, "error", exit.err)
			runErr = fmt.Errorf("%s: %w", exit.name, exit.err)
		} else {
			logger.Infow("service_exit", "service", exit.name)
		}
	}

	cancel()
	r.stopAll(stopTimeout)
	if r.sessions != nil {
		logger.Infow("sessions_resident_at_shutdown", "count", r.sessions.Len())
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (r *Runner) stopAll(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()
	for _, svc := range r.services {
		started := time.Now()
		if err := svc.Stop(stopCtx); err != nil {
			logger.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
			continue
		}
		logger.Debugw("service_stopped", "service", svc.Name(), "took", time.Since(started).String())
	}
}
