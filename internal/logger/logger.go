package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogDirName    = "logs"
	defaultLogFilename   = "storefront.log"
	defaultLogMaxSizeMB  = 50
	defaultLogMaxBackups = 5
	defaultLogMaxAgeDays = 14
)

// Options 日志输出配置
type Options struct {
	Dir        string
	Filename   string
	Level      string // debug / info / warn / error，为空时按运行模式决定
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// L 全局结构化日志实例
var L *zap.Logger

var (
	fallbackOnce sync.Once
	fallbackLog  *zap.Logger
)

// Init 初始化全局日志
func Init(mode string, options Options) *zap.Logger {
	L = New(mode, options)
	if L == nil {
		L = fallbackLogger()
	}
	zap.ReplaceGlobals(L)
	return L
}

// New 创建日志实例：debug 模式输出到控制台，其余模式写入滚动文件
func New(mode string, options Options) *zap.Logger {
	debug := isDebugMode(mode)
	level := resolveLevel(options.Level, debug)
	encoderConfig := newEncoderConfig()

	if debug {
		return newLogger(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level)
	}

	writeSyncer, err := newFileWriteSyncer(options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed, fallback to stdout: %v\n", err)
		return newLogger(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level)
	}
	return newLogger(zapcore.NewJSONEncoder(encoderConfig), writeSyncer, level)
}

// StdLogger 返回兼容标准库 log 的 logger
func StdLogger() *log.Logger {
	return zap.NewStdLog(Z())
}

// Z 返回可用的结构化日志实例
func Z() *zap.Logger {
	if L != nil {
		return L
	}
	return fallbackLogger()
}

// S 返回可用的 SugaredLogger
func S() *zap.SugaredLogger {
	return Z().Sugar()
}

// SW 返回带上下文字段的 SugaredLogger
func SW(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return S()
	}
	return S().With(kv...)
}

// ForSession 返回绑定会话 ID 的 SugaredLogger
func ForSession(sessionID string) *zap.SugaredLogger {
	if strings.TrimSpace(sessionID) == "" {
		return S()
	}
	return SW("session_id", sessionID)
}

// Debugw 输出 debug 级别日志
func Debugw(message string, kv ...interface{}) {
	S().Debugw(message, kv...)
}

// Infow 输出 info 级别日志
func Infow(message string, kv ...interface{}) {
	S().Infow(message, kv...)
}

// Warnw 输出 warn 级别日志
func Warnw(message string, kv ...interface{}) {
	S().Warnw(message, kv...)
}

// Errorw 输出 error 级别日志
func Errorw(message string, kv ...interface{}) {
	S().Errorw(message, kv...)
}

func isDebugMode(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), "debug")
}

func resolveLevel(raw string, debug bool) zap.AtomicLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn", "warning":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	if debug {
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zap.InfoLevel)
}

func newEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	return encoderConfig
}

func newLogger(encoder zapcore.Encoder, sink zapcore.WriteSyncer, level zap.AtomicLevel) *zap.Logger {
	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func fallbackLogger() *zap.Logger {
	fallbackOnce.Do(func() {
		fallbackLog = newLogger(
			zapcore.NewConsoleEncoder(newEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			zap.NewAtomicLevelAt(zap.InfoLevel),
		)
	})
	return fallbackLog
}

func newFileWriteSyncer(options Options) (zapcore.WriteSyncer, error) {
	logFilePath, err := resolveLogFilePath(options)
	if err != nil {
		return nil, err
	}
	writer := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    normalizePositiveInt(options.MaxSizeMB, defaultLogMaxSizeMB),
		MaxBackups: normalizePositiveInt(options.MaxBackups, defaultLogMaxBackups),
		MaxAge:     normalizePositiveInt(options.MaxAgeDays, defaultLogMaxAgeDays),
		Compress:   options.Compress,
	}
	return zapcore.AddSync(writer), nil
}

func resolveLogFilePath(options Options) (string, error) {
	dir := strings.TrimSpace(options.Dir)
	if dir == "" {
		workDir, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve workdir failed: %w", err)
		}
		dir = filepath.Join(workDir, defaultLogDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir failed: %w", err)
	}

	filename := strings.TrimSpace(options.Filename)
	if filename == "" {
		filename = defaultLogFilename
	}
	logFilePath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file failed: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close log file failed: %w", err)
	}
	return logFilePath, nil
}

func normalizePositiveInt(value int, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
