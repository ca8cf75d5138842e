package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/saleshop/internal/cache"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/service"
)

// CatalogClient 通过 HTTP GET 拉取商品目录
type CatalogClient struct {
	endpoint   string
	httpClient *http.Client
	cacheTTL   time.Duration
}

// NewCatalogClient 创建目录客户端
func NewCatalogClient(endpoint string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: newHTTPClient(timeout),
	}
}

// WithCache 开启 Redis 共享缓存，缓存原始响应体；Redis 未启用时不生效
func (c *CatalogClient) WithCache(ttl time.Duration) *CatalogClient {
	c.cacheTTL = ttl
	return c
}

func (c *CatalogClient) cacheKey() string {
	return "catalog:" + c.endpoint
}

// InvalidateCache 删除共享缓存，下一次拉取直达上游
func (c *CatalogClient) InvalidateCache(ctx context.Context) error {
	if c.cacheTTL <= 0 {
		return nil
	}
	return cache.Del(ctx, c.cacheKey())
}

// Endpoint 目录地址
func (c *CatalogClient) Endpoint() string {
	return c.endpoint
}

// FetchCatalog 实现 service.CatalogSource：传输失败或非 2xx 为 ErrNetwork，缺少 products 数组为 ErrMalformedCatalog
func (c *CatalogClient) FetchCatalog(ctx context.Context) (*service.CatalogPayload, error) {
	if body, ok := c.cachedBody(ctx); ok {
		if payload, err := decodeCatalog(body); err == nil {
			return payload, nil
		}
	}
	body, err := getJSON(ctx, c.httpClient, c.endpoint)
	if err != nil {
		logger.Warnw("catalog_fetch_failed", "endpoint", c.endpoint, "error", err)
		return nil, fmt.Errorf("%w: %v", service.ErrNetwork, err)
	}
	payload, err := decodeCatalog(body)
	if err != nil {
		return nil, err
	}
	if c.cacheTTL > 0 {
		if err := cache.SetJSON(ctx, c.cacheKey(), string(body), c.cacheTTL); err != nil {
			logger.Warnw("catalog_cache_write_failed", "endpoint", c.endpoint, "error", err)
		}
	}
	return payload, nil
}

func (c *CatalogClient) cachedBody(ctx context.Context) ([]byte, bool) {
	if c.cacheTTL <= 0 {
		return nil, false
	}
	var body string
	hit, err := cache.GetJSON(ctx, c.cacheKey(), &body)
	if err != nil {
		logger.Warnw("catalog_cache_read_failed", "endpoint", c.endpoint, "error", err)
		return nil, false
	}
	if !hit || body == "" {
		return nil, false
	}
	return []byte(body), true
}

func decodeCatalog(body []byte) (*service.CatalogPayload, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: expected object with products array: %v", service.ErrMalformedCatalog, err)
	}
	rawProducts, ok := envelope["products"]
	trimmed := bytes.TrimSpace(rawProducts)
	if !ok || len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected products array", service.ErrMalformedCatalog)
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var products []models.RawProduct
	if err := decoder.Decode(&products); err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrMalformedCatalog, err)
	}
	if products == nil {
		products = []models.RawProduct{}
	}
	return &service.CatalogPayload{Products: products}, nil
}
