package app

import (
	"os"
	"time"

	"github.com/saleshop/internal/config"
)

const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// normalizeOptions 补齐默认参数
func normalizeOptions(opts Options) Options {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
		if opts.Config != nil {
			opts.ShutdownTimeout = opts.Config.Server.ShutdownTimeout()
		}
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}
