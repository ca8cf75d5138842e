package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money 金额类型，保留精确小数，展示精度由调用方决定
type Money struct {
	decimal.Decimal
}

// ZeroMoney 零金额
var ZeroMoney = Money{Decimal: decimal.Zero}

// NewMoney 从 decimal 创建金额
func NewMoney(amount decimal.Decimal) Money {
	return Money{Decimal: amount}
}

// NewMoneyFromInt 从整数创建金额
func NewMoneyFromInt(amount int64) Money {
	return Money{Decimal: decimal.NewFromInt(amount)}
}

// ParseMoney 解析字符串金额
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return ZeroMoney, err
	}
	return Money{Decimal: d}, nil
}

// Add 金额相加
func (m Money) Add(other Money) Money {
	return Money{Decimal: m.Decimal.Add(other.Decimal)}
}

// MulInt 乘以数量
func (m Money) MulInt(n int) Money {
	return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(int64(n)))}
}

// Format 按指定小数位输出，仅用于展示
func (m Money) Format(places int32) string {
	return m.Decimal.StringFixed(places)
}

// FormatWithSymbol 带币种符号输出，例如 Ksh12.50 / $12.50
func (m Money) FormatWithSymbol(symbol string, places int32) string {
	return fmt.Sprintf("%s%s", symbol, m.Format(places))
}

// MarshalJSON 输出精确金额字符串
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Decimal.String())
}

// UnmarshalJSON 解析金额（字符串或数字）
func (m *Money) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		m.Decimal = d
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return err
	}
	m.Decimal = d
	return nil
}

// Value 用于数据库写入
func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Value()
}

// Scan 用于数据库读取
func (m *Money) Scan(value interface{}) error {
	return m.Decimal.Scan(value)
}

// String 返回精确金额
func (m Money) String() string {
	return m.Decimal.String()
}
