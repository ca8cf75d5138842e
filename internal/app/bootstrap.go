package app

import (
	"errors"
	"time"

	"github.com/saleshop/internal/config"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/provider"
	"github.com/saleshop/internal/router"
	"github.com/saleshop/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container, err := provider.NewContainer(cfg)
	if err != nil {
		return nil, err
	}

	var services []Service
	serveSessions := mode == ModeAll || mode == ModeAPI

	// 初始化 HTTP 服务与会话回收
	if serveSessions {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server, engine))
		services = append(services, NewSweeperService(container.SessionManager, sweepInterval(cfg)))
	}

	// 初始化 Worker 服务
	if mode == ModeAll || mode == ModeWorker {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(&cfg.Queue, consumer)
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	}

	// 如果没有服务被启动（例如模式错误或配置导致都没起），应该报错或至少打日志
	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	runner := NewRunner(services...)
	if serveSessions {
		runner.WithSessions(container.SessionManager)
	}
	return runner, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}

func sweepInterval(cfg *config.Config) time.Duration {
	idle := time.Duration(cfg.Session.IdleMinutes) * time.Minute
	if idle <= 0 {
		return time.Minute
	}
	interval := idle / 4
	if interval < 30*time.Second {
		interval = 30 * time.Second
	}
	return interval
}
