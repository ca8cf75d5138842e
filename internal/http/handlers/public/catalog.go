package public

import (
	"errors"
	"strings"

	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CatalogQuery 目录筛选参数
type CatalogQuery struct {
	Category    string `form:"category"`
	MaxPrice    string `form:"max_price"`
	MinDiscount string `form:"min_discount"`
}

// ProductView 商品展示结构
type ProductView struct {
	models.Product
	DiscountPercent int64 `json:"discountPercent"`
}

func toProductViews(products []models.Product) []ProductView {
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{Product: p, DiscountPercent: service.DiscountPercent(p)})
	}
	return views
}

// ensureCatalog 首次访问时拉取目录
func ensureCatalog(c *gin.Context, session *service.Session) bool {
	if session.Catalog.Loaded() {
		return true
	}
	_, err := session.LoadCatalog(c.Request.Context())
	if err = catalogLoadError(session.Catalog, err); err != nil {
		respondCatalogError(c, err)
		return false
	}
	return true
}

// catalogLoadError 本次加载被更新的请求取代时，按目录当前状态判定是否可用
func catalogLoadError(store *service.CatalogStore, err error) error {
	if err == nil || !errors.Is(err, service.ErrStaleCatalog) {
		return err
	}
	if store.Loaded() {
		return nil
	}
	if loadErr := store.LoadErr(); loadErr != nil {
		return loadErr
	}
	return err
}

func parseFilterQuery(q CatalogQuery) (service.FilterPredicate, error) {
	predicate := service.FilterPredicate{Category: strings.TrimSpace(q.Category)}
	verr := &service.ValidationError{}
	parse := func(field, raw string) *decimal.Decimal {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			verr.Fields = append(verr.Fields, service.FieldError{Field: field, Reason: "must be a non-negative number"})
			return nil
		}
		return &d
	}
	predicate.MaxPrice = parse("max_price", q.MaxPrice)
	predicate.MinDiscountPercent = parse("min_discount", q.MinDiscount)
	if len(verr.Fields) > 0 {
		return service.FilterPredicate{}, verr
	}
	return predicate, nil
}

// ListCatalog 获取筛选后的在售商品
func (h *Handler) ListCatalog(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	var query CatalogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	predicate, err := parseFilterQuery(query)
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	if !ensureCatalog(c, session) {
		return
	}
	products := session.Catalog.SetFilter(predicate)
	response.Success(c, gin.H{
		"products": toProductViews(products),
		"filter":   predicate,
		"total":    len(session.Catalog.Products()),
	})
}

// RefreshCatalog 重新拉取目录
func (h *Handler) RefreshCatalog(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	if h.CatalogClient != nil {
		if err := h.CatalogClient.InvalidateCache(c.Request.Context()); err != nil {
			logger.Warnw("catalog_cache_invalidate_failed", "session_id", session.ID, "error", err)
		}
	}
	products, err := session.LoadCatalog(c.Request.Context())
	if err != nil {
		respondCatalogError(c, err)
		return
	}
	response.Success(c, gin.H{
		"products": toProductViews(products),
	})
}

// ListCategories 获取目录分类
func (h *Handler) ListCategories(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	if !ensureCatalog(c, session) {
		return
	}
	response.Success(c, gin.H{"categories": session.Catalog.Categories()})
}
