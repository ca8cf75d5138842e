package repository

import (
	"context"
	"errors"
	"time"

	"github.com/saleshop/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartSnapshotRepository 购物车快照数据访问接口
type CartSnapshotRepository interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	WithTx(tx *gorm.DB) *GormCartSlot
}

// GormCartSlot GORM 实现，一行一个槽位
type GormCartSlot struct {
	db *gorm.DB
}

// NewCartSlot 创建数据库槽位
func NewCartSlot(db *gorm.DB) *GormCartSlot {
	return &GormCartSlot{db: db}
}

// WithTx 绑定事务
func (r *GormCartSlot) WithTx(tx *gorm.DB) *GormCartSlot {
	if tx == nil {
		return r
	}
	return &GormCartSlot{db: tx}
}

// Get 读取快照
func (r *GormCartSlot) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var snapshot models.CartSnapshot
	err := r.db.WithContext(ctx).Where("slot_key = ?", key).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(snapshot.Payload), true, nil
}

// Put 写入快照（存在则覆盖）
func (r *GormCartSlot) Put(ctx context.Context, key string, payload []byte) error {
	snapshot := &models.CartSnapshot{
		Key:       key,
		Payload:   string(payload),
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(snapshot).Error
}

// Delete 删除快照
func (r *GormCartSlot) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("slot_key = ?", key).Delete(&models.CartSnapshot{}).Error
}
