package service

import (
	"context"
	"strings"
	"sync"

	"github.com/saleshop/internal/constants"
	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
)

// CartLedger 购物车账本：每个商品至多一行，数量始终 >= 1，保持加入顺序
type CartLedger struct {
	mu          sync.Mutex
	items       []models.LineItem
	version     uint64
	persistence *CartPersistence
	notifier    *Notifier

	// saveMu 串行化快照写入，只写比已落盘版本更新的快照
	saveMu       sync.Mutex
	savedVersion uint64
}

// NewCartLedger 创建账本并从持久化槽位加载一次
func NewCartLedger(ctx context.Context, persistence *CartPersistence, notifier *Notifier) *CartLedger {
	return &CartLedger{
		items:       persistence.Load(ctx),
		persistence: persistence,
		notifier:    notifier,
	}
}

// AddItem 已存在则数量 +1，否则追加数量为 1 的新行
func (l *CartLedger) AddItem(ctx context.Context, productID models.ProductID, name string, unitPrice models.Money, imageURL string) error {
	verr := &ValidationError{}
	if strings.TrimSpace(productID.String()) == "" {
		verr.add("id", "required")
	}
	if unitPrice.IsNegative() {
		verr.add("price", "must not be negative")
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	l.mutate(ctx, func() bool {
		if idx := l.indexLocked(productID); idx >= 0 {
			l.items[idx].Quantity++
			return true
		}
		l.items = append(l.items, models.LineItem{
			ProductID: productID,
			Name:      name,
			UnitPrice: unitPrice,
			ImageURL:  imageURL,
			Quantity:  1,
		})
		return true
	})
	return nil
}

// AddProduct 以促销价加入商品
func (l *CartLedger) AddProduct(ctx context.Context, product models.Product) error {
	return l.AddItem(ctx, product.ID, product.Name, product.SalePrice, product.ImageURL)
}

// RemoveItem 删除整行，不存在时为空操作
func (l *CartLedger) RemoveItem(ctx context.Context, productID models.ProductID) bool {
	return l.mutate(ctx, func() bool {
		idx := l.indexLocked(productID)
		if idx < 0 {
			return false
		}
		l.items = append(l.items[:idx], l.items[idx+1:]...)
		return true
	})
}

// Increment 数量 +1，不存在时为空操作
func (l *CartLedger) Increment(ctx context.Context, productID models.ProductID) bool {
	return l.mutate(ctx, func() bool {
		idx := l.indexLocked(productID)
		if idx < 0 {
			return false
		}
		l.items[idx].Quantity++
		return true
	})
}

// Decrement 数量 -1；数量为 1 或商品不存在时为空操作
func (l *CartLedger) Decrement(ctx context.Context, productID models.ProductID) bool {
	return l.mutate(ctx, func() bool {
		idx := l.indexLocked(productID)
		if idx < 0 || l.items[idx].Quantity <= 1 {
			return false
		}
		l.items[idx].Quantity--
		return true
	})
}

// Clear 清空账本
func (l *CartLedger) Clear(ctx context.Context) {
	l.mutate(ctx, func() bool {
		l.items = []models.LineItem{}
		return true
	})
}

// TotalQuantity 商品总件数（角标展示）
func (l *CartLedger) TotalQuantity() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalQuantityLocked()
}

// Items 行项目副本，按加入顺序
func (l *CartLedger) Items() []models.LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.LineItem, len(l.items))
	copy(out, l.items)
	return out
}

// Find 查找行项目
func (l *CartLedger) Find(productID models.ProductID) (models.LineItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if idx := l.indexLocked(productID); idx >= 0 {
		return l.items[idx], true
	}
	return models.LineItem{}, false
}

// Len 行数
func (l *CartLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// IsEmpty 是否为空
func (l *CartLedger) IsEmpty() bool {
	return l.Len() == 0
}

func (l *CartLedger) save(ctx context.Context, version uint64, snapshot []models.LineItem) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	if version <= l.savedVersion {
		return nil
	}
	if err := l.persistence.Save(ctx, snapshot); err != nil {
		return err
	}
	l.savedVersion = version
	return nil
}

func (l *CartLedger) indexLocked(productID models.ProductID) int {
	for i := range l.items {
		if l.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (l *CartLedger) totalQuantityLocked() int {
	total := 0
	for _, item := range l.items {
		total += item.Quantity
	}
	return total
}

// mutate 在锁内执行变更并复制快照，锁外写穿持久化并发出通知；写入失败不回滚内存状态
func (l *CartLedger) mutate(ctx context.Context, fn func() bool) bool {
	l.mu.Lock()
	if !fn() {
		l.mu.Unlock()
		return false
	}
	l.version++
	version := l.version
	snapshot := make([]models.LineItem, len(l.items))
	copy(snapshot, l.items)
	totalQuantity := l.totalQuantityLocked()
	lineCount := len(l.items)
	l.mu.Unlock()

	persistErr := l.save(ctx, version, snapshot)

	if persistErr != nil {
		logger.Warnw("cart_persist_failed",
			"key", l.persistence.Key(),
			"error", persistErr,
		)
		l.notifier.Publish(constants.EventCartPersistFailed, map[string]interface{}{
			"error": persistErr.Error(),
		})
	}
	l.notifier.Publish(constants.EventCartChanged, map[string]interface{}{
		"total_quantity": totalQuantity,
		"line_count":     lineCount,
	})
	return true
}
