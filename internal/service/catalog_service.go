package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"

	"github.com/shopspring/decimal"
)

// CatalogPayload 目录接口响应，顶层必须包含 products 数组
type CatalogPayload struct {
	Products []models.RawProduct `json:"products"`
}

// CatalogSource 目录数据源
type CatalogSource interface {
	FetchCatalog(ctx context.Context) (*CatalogPayload, error)
}

// FilterPredicate 商品筛选条件，零值表示不筛选
type FilterPredicate struct {
	Category           string           `json:"category,omitempty"`
	MaxPrice           *decimal.Decimal `json:"maxPrice,omitempty"`
	MinDiscountPercent *decimal.Decimal `json:"minDiscountPercent,omitempty"`
}

// IsZero 是否未设置任何条件
func (f FilterPredicate) IsZero() bool {
	return normalizeCategory(f.Category) == "" && f.MaxPrice == nil && f.MinDiscountPercent == nil
}

// Matches 判断商品是否满足全部条件
func (f FilterPredicate) Matches(p models.Product) bool {
	if category := normalizeCategory(f.Category); category != "" && strings.ToLower(p.Category) != category {
		return false
	}
	if f.MaxPrice != nil && p.SalePrice.Decimal.GreaterThan(*f.MaxPrice) {
		return false
	}
	minDiscount := decimal.Zero
	if f.MinDiscountPercent != nil {
		minDiscount = *f.MinDiscountPercent
	}
	return decimal.NewFromInt(DiscountPercent(p)).GreaterThanOrEqual(minDiscount)
}

// 空白分类表示不限分类
func normalizeCategory(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

var hundred = decimal.NewFromInt(100)

// DiscountPercent 折扣百分比 round(100 × (原价 − 售价) / 原价)，原价为 0 时为 0
func DiscountPercent(p models.Product) int64 {
	orig := p.OriginalPrice.Decimal
	if orig.IsZero() {
		return 0
	}
	pct := orig.Sub(p.SalePrice.Decimal).Mul(hundred).Div(orig)
	// 0.5 向正无穷方向进位
	return pct.Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
}

// CatalogStore 在售商品目录与当前筛选条件
type CatalogStore struct {
	mu       sync.RWMutex
	source   CatalogSource
	products []models.Product
	filter   FilterPredicate
	loaded   bool
	loadErr  error
	reqSeq   uint64
}

// NewCatalogStore 创建目录存储，source 可为空（仅使用 Load）
func NewCatalogStore(source CatalogSource) *CatalogStore {
	return &CatalogStore{source: source}
}

// Load 整体替换商品集合：仅保留 onSale == true 的记录
func (s *CatalogStore) Load(raw []models.RawProduct) ([]models.Product, error) {
	products, err := parseCatalog(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLoadLocked(products, err)
	if err != nil {
		return nil, err
	}
	return cloneProducts(products), nil
}

// Refresh 通过数据源拉取目录；较新的请求发出后，旧请求的结果被丢弃
func (s *CatalogStore) Refresh(ctx context.Context) ([]models.Product, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: catalog source not configured", ErrNetwork)
	}
	s.mu.Lock()
	s.reqSeq++
	token := s.reqSeq
	s.mu.Unlock()

	payload, err := s.source.FetchCatalog(ctx)
	var products []models.Product
	if err == nil {
		if payload == nil {
			err = fmt.Errorf("%w: empty response", ErrMalformedCatalog)
		} else {
			products, err = parseCatalog(payload.Products)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.reqSeq {
		logger.Debugw("catalog_refresh_stale", "token", token, "latest", s.reqSeq)
		return nil, ErrStaleCatalog
	}
	s.applyLoadLocked(products, err)
	if err != nil {
		return nil, err
	}
	return cloneProducts(products), nil
}

func (s *CatalogStore) applyLoadLocked(products []models.Product, err error) {
	if err != nil {
		// 加载失败不保留部分目录
		s.products = nil
		s.loaded = false
		s.loadErr = err
		return
	}
	s.products = products
	s.loaded = true
	s.loadErr = nil
}

// ApplyFilter 纯函数筛选，保持目录原有顺序
func (s *CatalogStore) ApplyFilter(predicate FilterPredicate) []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if predicate.Matches(p) {
			result = append(result, p)
		}
	}
	return result
}

// SetFilter 替换当前筛选条件并返回筛选结果
func (s *CatalogStore) SetFilter(predicate FilterPredicate) []models.Product {
	s.mu.Lock()
	s.filter = predicate
	s.mu.Unlock()
	return s.ApplyFilter(predicate)
}

// ClearFilter 一次性清空全部筛选条件
func (s *CatalogStore) ClearFilter() []models.Product {
	return s.SetFilter(FilterPredicate{})
}

// Filter 当前筛选条件
func (s *CatalogStore) Filter() FilterPredicate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// Filtered 按当前筛选条件返回商品
func (s *CatalogStore) Filtered() []models.Product {
	return s.ApplyFilter(s.Filter())
}

// Products 全部在售商品
func (s *CatalogStore) Products() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products)
}

// Find 按 ID 查找商品
func (s *CatalogStore) Find(id models.ProductID) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Categories 去重后的分类列表（忽略大小写，保留首次出现的写法）
func (s *CatalogStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{}, len(s.products))
	categories := make([]string, 0)
	for _, p := range s.products {
		key := strings.ToLower(strings.TrimSpace(p.Category))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}

// Loaded 是否已成功加载
func (s *CatalogStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// LoadErr 最近一次加载错误
func (s *CatalogStore) LoadErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

func cloneProducts(products []models.Product) []models.Product {
	if products == nil {
		return []models.Product{}
	}
	out := make([]models.Product, len(products))
	copy(out, products)
	return out
}

func parseCatalog(raw []models.RawProduct) ([]models.Product, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: products is not an array", ErrMalformedCatalog)
	}
	products := make([]models.Product, 0, len(raw))
	for idx, record := range raw {
		product, err := parseRawProduct(record)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrMalformedCatalog, idx, err)
		}
		if !product.OnSale {
			continue
		}
		products = append(products, product)
	}
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}
	return products, nil
}

func parseRawProduct(record models.RawProduct) (models.Product, error) {
	if record == nil {
		return models.Product{}, fmt.Errorf("record is null")
	}
	id, err := parseIdentity(record["id"])
	if err != nil {
		return models.Product{}, err
	}
	name, _ := record["name"].(string)
	if strings.TrimSpace(name) == "" {
		return models.Product{}, fmt.Errorf("name is required")
	}
	originalPrice, err := parsePrice("originalPrice", record["originalPrice"])
	if err != nil {
		return models.Product{}, err
	}
	salePrice, err := parsePrice("salePrice", record["salePrice"])
	if err != nil {
		return models.Product{}, err
	}
	category, _ := record["category"].(string)
	imageURL, _ := record["imageUrl"].(string)
	// 只有布尔 true 视为在售
	onSale, _ := record["onSale"].(bool)

	return models.Product{
		ID:            id,
		Name:          name,
		Category:      category,
		OriginalPrice: models.NewMoney(originalPrice),
		SalePrice:     models.NewMoney(salePrice),
		OnSale:        onSale,
		ImageURL:      strings.TrimSpace(imageURL),
	}, nil
}

func parseIdentity(raw interface{}) (models.ProductID, error) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("id is empty")
		}
		return models.ProductID(strings.TrimSpace(v)), nil
	case json.Number:
		return models.ProductID(v.String()), nil
	case float64:
		return models.ProductID(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case int:
		return models.ProductID(strconv.Itoa(v)), nil
	case int64:
		return models.ProductID(strconv.FormatInt(v, 10)), nil
	case nil:
		return "", fmt.Errorf("id is required")
	default:
		return "", fmt.Errorf("id has unsupported type %T", raw)
	}
}

func parsePrice(field string, raw interface{}) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(v))
	default:
		return decimal.Zero, fmt.Errorf("%s is not numeric", field)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s is not numeric", field)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s is negative", field)
	}
	return d, nil
}
