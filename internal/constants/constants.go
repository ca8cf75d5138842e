package constants

// 结账状态常量
const (
	CheckoutStateClosed     = "closed"
	CheckoutStateOpen       = "open"
	CheckoutStateSubmitting = "submitting"
	CheckoutStateConfirmed  = "confirmed"
	CheckoutStateFailed     = "failed"
)

// 会话事件常量
const (
	EventCatalogLoaded        = "catalog_loaded"
	EventCatalogFailed        = "catalog_failed"
	EventCartChanged          = "cart_changed"
	EventCartPersistFailed    = "cart_persist_failed"
	EventCheckoutStateChanged = "checkout_state_changed"
	EventOrderConfirmed       = "order_confirmed"
	EventPaymentInitiated     = "payment_initiated"
)

// 购物车存储驱动常量
const (
	CartStorageMemory   = "memory"
	CartStorageDatabase = "database"
	CartStorageRedis    = "redis"
)

// DefaultCartKey 购物车快照默认键名
const DefaultCartKey = "cart"

// 订单回执渠道常量
const (
	ReceiptChannelOrder   = "order"
	ReceiptChannelPayment = "payment"
)

// 订单号格式
const (
	OrderIDPrefix       = "ORD"
	OrderIDRandomLength = 5
)

// 异步任务常量
const (
	QueueDefault            = "default"
	TaskOrderConfirmed      = "order:confirmed"
	TaskOrderConfirmedRetry = 5
)
