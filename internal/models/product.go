package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductID 商品标识（接口返回的数字 ID 统一转为字符串）
type ProductID string

// String 返回字符串形式
func (id ProductID) String() string {
	return string(id)
}

// UnmarshalJSON 兼容数字与字符串两种 ID
func (id *ProductID) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("product id must be string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// RawProduct 目录接口返回的原始商品记录
type RawProduct map[string]interface{}

// Product 在售商品（会话内只读）
type Product struct {
	ID            ProductID `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	OriginalPrice Money     `json:"originalPrice"`
	SalePrice     Money     `json:"salePrice"`
	OnSale        bool      `json:"onSale"`
	ImageURL      string    `json:"imageUrl,omitempty"`
}
