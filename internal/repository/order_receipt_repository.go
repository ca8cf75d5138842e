package repository

import (
	"errors"
	"strings"

	"github.com/saleshop/internal/models"

	"gorm.io/gorm"
)

// OrderReceiptRepository 订单回执数据访问接口
type OrderReceiptRepository interface {
	Create(receipt *models.OrderReceipt) error
	GetByOrderID(orderID, channel string) (*models.OrderReceipt, error)
	List(filter ReceiptListFilter) ([]models.OrderReceipt, int64, error)
	WithTx(tx *gorm.DB) *GormOrderReceiptRepository
}

// GormOrderReceiptRepository GORM 实现
type GormOrderReceiptRepository struct {
	db *gorm.DB
}

// NewOrderReceiptRepository 创建回执仓库
func NewOrderReceiptRepository(db *gorm.DB) *GormOrderReceiptRepository {
	return &GormOrderReceiptRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderReceiptRepository) WithTx(tx *gorm.DB) *GormOrderReceiptRepository {
	if tx == nil {
		return r
	}
	return &GormOrderReceiptRepository{db: tx}
}

// Create 创建回执
func (r *GormOrderReceiptRepository) Create(receipt *models.OrderReceipt) error {
	return r.db.Create(receipt).Error
}

// GetByOrderID 按订单号与渠道查询回执
func (r *GormOrderReceiptRepository) GetByOrderID(orderID, channel string) (*models.OrderReceipt, error) {
	var receipt models.OrderReceipt
	err := r.db.Where("order_id = ? AND channel = ?", orderID, channel).First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// List 回执列表
func (r *GormOrderReceiptRepository) List(filter ReceiptListFilter) ([]models.OrderReceipt, int64, error) {
	query := r.db.Model(&models.OrderReceipt{})
	if sessionID := strings.TrimSpace(filter.SessionID); sessionID != "" {
		query = query.Where("session_id = ?", sessionID)
	}
	if channel := strings.TrimSpace(filter.Channel); channel != "" {
		query = query.Where("channel = ?", channel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var receipts []models.OrderReceipt
	if err := applyPagination(query.Order("confirmed_at desc, id desc"), filter.Page, filter.PageSize).Find(&receipts).Error; err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}
