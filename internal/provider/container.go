package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saleshop/internal/cache"
	"github.com/saleshop/internal/config"
	"github.com/saleshop/internal/constants"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/payment/mpesa"
	"github.com/saleshop/internal/queue"
	"github.com/saleshop/internal/repository"
	"github.com/saleshop/internal/service"
	"github.com/saleshop/internal/upstream"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	CartSlot         service.CartSlot
	OrderReceiptRepo repository.OrderReceiptRepository

	// Upstream
	CatalogClient    *upstream.CatalogClient
	OrderClient      *upstream.OrderClient
	PaymentInitiator service.PaymentInitiator

	// Services
	PricingPolicy  service.PricingPolicy
	SessionManager *service.SessionManager
	SessionTokens  *service.SessionTokenService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	} else if cache.Enabled() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			logger.Warnw("provider_redis_ping_failed", "error", err)
		}
		cancel()
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories(models.DB)

	// 2. 初始化上游客户端
	if err := c.initUpstream(); err != nil {
		return nil, err
	}

	// 3. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories(db *gorm.DB) {
	if db != nil {
		c.OrderReceiptRepo = repository.NewOrderReceiptRepository(db)
	}
	c.CartSlot = resolveCartSlot(c.Config, db)
}

// resolveCartSlot 按 cart.storage 选择快照槽位；依赖不可用时回落到内存
func resolveCartSlot(cfg *config.Config, db *gorm.DB) service.CartSlot {
	storage := strings.ToLower(strings.TrimSpace(cfg.Cart.Storage))
	switch storage {
	case constants.CartStorageRedis:
		if cache.Enabled() {
			ttl := time.Duration(cfg.Session.ExpireHours) * time.Hour
			return cache.NewRedisCartSlot(cache.Client(), cache.Prefix(), ttl)
		}
		logger.Warnw("provider_cart_storage_fallback", "storage", storage, "fallback", constants.CartStorageMemory, "reason", "redis disabled")
	case "", constants.CartStorageDatabase:
		if db != nil {
			return repository.NewCartSlot(db)
		}
		logger.Warnw("provider_cart_storage_fallback", "storage", storage, "fallback", constants.CartStorageMemory, "reason", "database not initialized")
	case constants.CartStorageMemory:
	default:
		logger.Warnw("provider_cart_storage_unknown", "storage", storage, "fallback", constants.CartStorageMemory)
	}
	return repository.NewMemoryCartSlot()
}

func (c *Container) initUpstream() error {
	sf := c.Config.Storefront
	timeout := time.Duration(sf.HTTPTimeoutSeconds) * time.Second

	catalogURL, err := sf.CatalogEndpointURL()
	if err != nil {
		logger.Errorw("provider_catalog_endpoint_invalid", "error", err)
		return err
	}
	orderURL, err := sf.OrderEndpointURL()
	if err != nil {
		logger.Errorw("provider_order_endpoint_invalid", "error", err)
		return err
	}
	c.CatalogClient = upstream.NewCatalogClient(catalogURL, timeout).
		WithCache(time.Duration(sf.CatalogCacheSeconds) * time.Second)
	c.OrderClient = upstream.NewOrderClient(orderURL, timeout)

	paymentURL, err := sf.PaymentEndpointURL()
	if err != nil {
		// 支付为可选路径，缺失时仅禁用
		logger.Warnw("provider_payment_endpoint_unavailable", "error", err)
		return nil
	}
	mpesaClient, err := mpesa.NewClient(mpesa.Config{Endpoint: paymentURL, Timeout: timeout})
	if err != nil {
		logger.Warnw("provider_init_mpesa_failed", "error", err)
		return nil
	}
	c.PaymentInitiator = service.NewMpesaPaymentInitiator(mpesaClient)
	return nil
}

func (c *Container) initServices() error {
	fee, threshold, rate, err := c.Config.Pricing.Decimals()
	if err != nil {
		return err
	}
	policy, err := service.NewPricingPolicy(fee, threshold, rate)
	if err != nil {
		logger.Errorw("provider_pricing_policy_invalid", "error", err)
		return err
	}
	c.PricingPolicy = policy

	c.SessionTokens = service.NewSessionTokenService(c.Config.Session.SecretKey, c.Config.Session.ExpireHours).
		WithResumeGrace(time.Duration(c.Config.Session.ResumeGraceHours) * time.Hour)

	deps := service.SessionDeps{
		Slot:        c.CartSlot,
		CartKey:     c.Config.Cart.Key,
		Catalog:     c.CatalogClient,
		Submitter:   c.OrderClient,
		Payments:    c.PaymentInitiator,
		Policy:      policy,
		Currency:    c.Config.Storefront.Currency,
		Symbol:      c.Config.Storefront.CurrencySymbol,
		IdleTimeout: time.Duration(c.Config.Session.IdleMinutes) * time.Minute,
		OnEvent:     c.enqueueConfirmedOrder,
	}
	c.SessionManager = service.NewSessionManager(deps)
	return nil
}

// enqueueConfirmedOrder 订单确认 / 支付发起事件转为回执归档任务
func (c *Container) enqueueConfirmedOrder(event service.Event) {
	if event.Name != constants.EventOrderConfirmed && event.Name != constants.EventPaymentInitiated {
		return
	}
	if c.QueueClient == nil || !c.QueueClient.Enabled() {
		return
	}
	payload := OrderConfirmedPayloadFromEvent(event)
	if err := c.QueueClient.EnqueueOrderConfirmed(payload); err != nil {
		logger.Warnw("provider_enqueue_order_confirmed_failed",
			"session_id", event.SessionID,
			"order_id", payload.OrderID,
			"error", err,
		)
	}
}

// OrderConfirmedPayloadFromEvent 由会话事件构造回执任务载荷
func OrderConfirmedPayloadFromEvent(event service.Event) queue.OrderConfirmedPayload {
	str := func(key string) string {
		if v, ok := event.Data[key].(string); ok {
			return v
		}
		return ""
	}
	itemCount, _ := event.Data["item_count"].(int)
	return queue.OrderConfirmedPayload{
		OrderID:     str("order_id"),
		SessionID:   event.SessionID,
		Channel:     str("channel"),
		Total:       str("total"),
		Currency:    str("currency"),
		ItemCount:   itemCount,
		Email:       str("email"),
		Reference:   str("reference"),
		ConfirmedAt: event.OccurredAt,
	}
}
