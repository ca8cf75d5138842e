package models

import "time"

// OrderReceipt 已确认订单回执（由 worker 归档）
type OrderReceipt struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                      // 主键
	ReceiptNo   string    `gorm:"uniqueIndex;type:varchar(64);not null" json:"receipt_no"`   // 回执编号
	OrderID     string    `gorm:"index;type:varchar(64);not null" json:"order_id"`           // 订单编号
	SessionID   string    `gorm:"index;type:varchar(64)" json:"session_id"`                  // 会话ID
	Channel     string    `gorm:"type:varchar(20);not null" json:"channel"`                  // order / payment
	Currency    string    `gorm:"type:varchar(16)" json:"currency"`                          // 币种
	TotalAmount Money     `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"` // 订单总额
	ItemCount   int       `gorm:"not null;default:0" json:"item_count"`                      // 商品件数
	Email       string    `gorm:"type:varchar(191)" json:"email,omitempty"`                  // 客户邮箱
	ConfirmedAt time.Time `gorm:"index" json:"confirmed_at"`                                 // 确认时间
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
}

// TableName 指定表名
func (OrderReceipt) TableName() string {
	return "order_receipts"
}
