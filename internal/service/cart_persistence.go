package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/models"
)

// CartSlot 持久化键值槽位（内存 / 数据库 / Redis）
type CartSlot interface {
	// Get 读取槽位，未写入过时 found 为 false
	Get(ctx context.Context, key string) (payload []byte, found bool, err error)
	Put(ctx context.Context, key string, payload []byte) error
}

// CartPersistence 购物车快照读写适配器
type CartPersistence struct {
	slot CartSlot
	key  string
}

// NewCartPersistence 创建持久化适配器
func NewCartPersistence(slot CartSlot, key string) *CartPersistence {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "cart"
	}
	return &CartPersistence{slot: slot, key: key}
}

// Key 槽位键
func (p *CartPersistence) Key() string {
	return p.key
}

// Save 写入快照，失败时返回 ErrPersistence，由调用方决定如何上报
func (p *CartPersistence) Save(ctx context.Context, items []models.LineItem) error {
	if p == nil || p.slot == nil {
		return nil
	}
	if items == nil {
		items = []models.LineItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	if err := p.slot.Put(ctx, p.key, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Load 读取快照；槽位缺失、读取失败或数据损坏时返回空购物车，不向上传播错误
func (p *CartPersistence) Load(ctx context.Context) []models.LineItem {
	if p == nil || p.slot == nil {
		return []models.LineItem{}
	}
	payload, found, err := p.slot.Get(ctx, p.key)
	if err != nil {
		logger.Warnw("cart_snapshot_read_failed", "key", p.key, "error", err)
		return []models.LineItem{}
	}
	if !found || len(strings.TrimSpace(string(payload))) == 0 {
		return []models.LineItem{}
	}
	items, err := decodeCartSnapshot(payload)
	if err != nil {
		logger.Warnw("cart_snapshot_corrupt", "key", p.key, "error", err)
		return []models.LineItem{}
	}
	return items
}

func decodeCartSnapshot(payload []byte) ([]models.LineItem, error) {
	var items []models.LineItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, err
	}
	seen := make(map[models.ProductID]struct{}, len(items))
	for idx, item := range items {
		if strings.TrimSpace(item.ProductID.String()) == "" {
			return nil, fmt.Errorf("item %d: id is required", idx)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("item %d: quantity %d below 1", idx, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("item %d: price is negative", idx)
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fmt.Errorf("item %d: duplicate id %s", idx, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	if items == nil {
		items = []models.LineItem{}
	}
	return items, nil
}
