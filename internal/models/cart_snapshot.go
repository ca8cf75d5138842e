package models

import "time"

// CartSnapshot 购物车快照（单键槽位）
type CartSnapshot struct {
	Key       string    `gorm:"column:slot_key;primarykey;type:varchar(191)" json:"key"` // 槽位键
	Payload   string    `gorm:"type:text;not null" json:"payload"`                       // 序列化后的行项目数组
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
