package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/saleshop/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// 内置的默认上游地址
const (
	DefaultCatalogEndpoint = "http://localhost:2000/"
	DefaultOrderEndpoint   = "http://localhost:8080/api/orders"
	DefaultPaymentEndpoint = "http://localhost:8080/lipaNaMpesa"
)

// ErrNoEndpointConfigured 要求显式配置但未配置上游地址
var ErrNoEndpointConfigured = errors.New("no endpoint configured")

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Session    SessionConfig    `mapstructure:"session"`
	Cart       CartConfig       `mapstructure:"cart"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Security   SecurityConfig   `mapstructure:"security"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                     string `mapstructure:"host"`
	Port                     string `mapstructure:"port"`
	Mode                     string `mapstructure:"mode"` // debug / release
	ReadHeaderTimeoutSeconds int    `mapstructure:"read_header_timeout_seconds"`
	ReadTimeoutSeconds       int    `mapstructure:"read_timeout_seconds"`  // 0 表示不限制，SSE 长连接依赖此默认值
	WriteTimeoutSeconds      int    `mapstructure:"write_timeout_seconds"` // 同上
	IdleTimeoutSeconds       int    `mapstructure:"idle_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `mapstructure:"shutdown_timeout_seconds"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ReadHeaderTimeout 请求头读取超时，未配置时为 5 秒
func (c ServerConfig) ReadHeaderTimeout() time.Duration {
	if c.ReadHeaderTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ReadHeaderTimeoutSeconds) * time.Second
}

// ShutdownTimeout 优雅停机等待时长，未配置时为 10 秒
func (c ServerConfig) ShutdownTimeout() time.Duration {
	if c.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		Level:      c.Level,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// SessionConfig 购物会话配置
type SessionConfig struct {
	SecretKey        string `mapstructure:"secret"`
	ExpireHours      int    `mapstructure:"expire_hours"`
	IdleMinutes      int    `mapstructure:"idle_minutes"`
	ResumeGraceHours int    `mapstructure:"resume_grace_hours"` // 过期令牌可用于恢复会话的宽限期
}

// CartConfig 购物车持久化配置
type CartConfig struct {
	Storage string `mapstructure:"storage"` // memory / database / redis
	Key     string `mapstructure:"key"`
}

// StorefrontConfig 店面上游配置
type StorefrontConfig struct {
	CatalogEndpoint         string `mapstructure:"catalog_endpoint"`
	OrderEndpoint           string `mapstructure:"order_endpoint"`
	PaymentEndpoint         string `mapstructure:"payment_endpoint"`
	RequireExplicitEndpoint bool   `mapstructure:"require_explicit_endpoint"`
	Currency                string `mapstructure:"currency"`
	CurrencySymbol          string `mapstructure:"currency_symbol"`
	HTTPTimeoutSeconds      int    `mapstructure:"http_timeout_seconds"`
	CatalogCacheSeconds     int    `mapstructure:"catalog_cache_seconds"`
}

// PricingConfig 计价策略配置（金额以字符串保存，避免浮点误差）
type PricingConfig struct {
	FlatShippingFee       string `mapstructure:"flat_shipping_fee"`
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold"`
	TaxRate               string `mapstructure:"tax_rate"`
}

// Decimals 解析计价配置
func (c PricingConfig) Decimals() (fee, threshold, taxRate decimal.Decimal, err error) {
	if fee, err = parseDecimal("pricing.flat_shipping_fee", c.FlatShippingFee); err != nil {
		return
	}
	if threshold, err = parseDecimal("pricing.free_shipping_threshold", c.FreeShippingThreshold); err != nil {
		return
	}
	taxRate, err = parseDecimal("pricing.tax_rate", c.TaxRate)
	return
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CheckoutRateLimit RateLimitConfig `mapstructure:"checkout_rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// Load 从 config.yml 加载配置；工作目录下的 .env 先写入环境变量（不覆盖已存在的变量）
func Load() *Config {
	LoadDotEnv()
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./")
	v.AddConfigPath("../")
	v.AddConfigPath("./etc")

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return cfg
}

// LoadDotEnv 读取 .env 文件，缺失时忽略
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Debugw("config_dotenv_skipped", "error", err)
	}
}

// LoadWithViper 在给定 viper 实例上补齐默认值与环境变量后解析配置
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// 环境变量支持：storefront.catalog_endpoint -> STOREFRONT_CATALOG_ENDPOINT
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if _, _, _, err := cfg.Pricing.Decimals(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_header_timeout_seconds", 5)
	v.SetDefault("server.read_timeout_seconds", 0)
	v.SetDefault("server.write_timeout_seconds", 0)
	v.SetDefault("server.idle_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "storefront.log")
	v.SetDefault("log.level", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/storefront.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "shop")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.queues", map[string]int{
		"default": 10,
	})
	v.SetDefault("session.secret", "session-change-me-in-production")
	v.SetDefault("session.expire_hours", 72)
	v.SetDefault("session.idle_minutes", 120)
	v.SetDefault("session.resume_grace_hours", 168)
	v.SetDefault("cart.storage", "database")
	v.SetDefault("cart.key", "cart")
	// 上游地址默认留空，由 ResolveEndpoint 决定是否回落到内置地址
	v.SetDefault("storefront.catalog_endpoint", "")
	v.SetDefault("storefront.order_endpoint", "")
	v.SetDefault("storefront.payment_endpoint", "")
	v.SetDefault("storefront.require_explicit_endpoint", false)
	v.SetDefault("storefront.currency", "USD")
	v.SetDefault("storefront.currency_symbol", "$")
	v.SetDefault("storefront.http_timeout_seconds", 15)
	v.SetDefault("storefront.catalog_cache_seconds", 30)
	v.SetDefault("pricing.flat_shipping_fee", "9.99")
	v.SetDefault("pricing.free_shipping_threshold", "50")
	v.SetDefault("pricing.tax_rate", "0.08")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.checkout_rate_limit.window_seconds", 60)
	v.SetDefault("security.checkout_rate_limit.max_requests", 5)
}

// ResolveEndpoint 解析上游地址：显式配置优先；未配置时按 requireExplicit 决定回落默认地址或报错
func ResolveEndpoint(name, configured, fallback string, requireExplicit bool) (string, error) {
	endpoint := strings.TrimSpace(configured)
	if endpoint == "" {
		if requireExplicit {
			return "", fmt.Errorf("%w: %s", ErrNoEndpointConfigured, name)
		}
		endpoint = fallback
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("%s endpoint invalid: %q", name, endpoint)
	}
	return endpoint, nil
}

// CatalogEndpointURL 商品目录地址
func (c StorefrontConfig) CatalogEndpointURL() (string, error) {
	return ResolveEndpoint("catalog", c.CatalogEndpoint, DefaultCatalogEndpoint, c.RequireExplicitEndpoint)
}

// OrderEndpointURL 订单后端地址
func (c StorefrontConfig) OrderEndpointURL() (string, error) {
	return ResolveEndpoint("order", c.OrderEndpoint, DefaultOrderEndpoint, c.RequireExplicitEndpoint)
}

// PaymentEndpointURL 支付发起地址
func (c StorefrontConfig) PaymentEndpointURL() (string, error) {
	return ResolveEndpoint("payment", c.PaymentEndpoint, DefaultPaymentEndpoint, c.RequireExplicitEndpoint)
}

func parseDecimal(key, raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s invalid: %w", key, err)
	}
	return d, nil
}
