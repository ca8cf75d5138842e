package router

import (
	"github.com/saleshop/internal/cache"
	"github.com/saleshop/internal/config"
	publichandlers "github.com/saleshop/internal/http/handlers/public"
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	limiter := NewRateLimiter(cache.Client(), cfg.Redis.Prefix)
	checkoutLimit := cfg.Security.CheckoutRateLimit
	sessionRule := RateLimitRule{
		Scope:         ScopeSessionIssue,
		WindowSeconds: checkoutLimit.WindowSeconds,
		MaxRequests:   checkoutLimit.MaxRequests * 4,
	}
	submitRule := RateLimitRule{
		Scope:         ScopeCheckoutSubmit,
		WindowSeconds: checkoutLimit.WindowSeconds,
		MaxRequests:   checkoutLimit.MaxRequests,
		Message:       "too many checkout attempts, retry in %d seconds",
	}
	paymentRule := RateLimitRule{
		Scope:         ScopeCheckoutPayment,
		WindowSeconds: checkoutLimit.WindowSeconds,
		MaxRequests:   checkoutLimit.MaxRequests,
		Message:       "too many payment requests, retry in %d seconds",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/health", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 会话签发无需鉴权
		apiV1.POST("/sessions", limiter.Middleware(sessionRule, KeyByIP), publicHandler.CreateSession)

		shop := apiV1.Group("")
		shop.Use(SessionAuthMiddleware(c.SessionTokens))
		{
			shop.GET("/catalog", publicHandler.ListCatalog)
			shop.POST("/catalog/refresh", publicHandler.RefreshCatalog)
			shop.GET("/catalog/categories", publicHandler.ListCategories)

			shop.GET("/cart", publicHandler.GetCart)
			shop.POST("/cart/items", publicHandler.AddCartItem)
			shop.DELETE("/cart/items/:id", publicHandler.RemoveCartItem)
			shop.POST("/cart/items/:id/increment", publicHandler.IncrementCartItem)
			shop.POST("/cart/items/:id/decrement", publicHandler.DecrementCartItem)
			shop.DELETE("/cart", publicHandler.ClearCart)

			shop.GET("/checkout", publicHandler.GetCheckout)
			shop.POST("/checkout/open", publicHandler.OpenCheckout)
			shop.POST("/checkout/resume", publicHandler.ResumeCheckout)
			shop.POST("/checkout/cancel", publicHandler.CancelCheckout)
			shop.POST("/checkout/submit", limiter.Middleware(submitRule, SessionKey), publicHandler.SubmitCheckout)
			shop.POST("/checkout/payment", limiter.Middleware(paymentRule, KeyByPaymentPhone), publicHandler.InitiatePayment)

			shop.GET("/events", publicHandler.StreamEvents)
			shop.GET("/receipts", publicHandler.ListReceipts)
		}
	}

	return r
}
