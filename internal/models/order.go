package models

import (
	"time"
)

// Customer 下单客户信息
type Customer struct {
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phoneNumber,omitempty" validate:"omitempty,contact_phone"`
}

// ShippingAddress 收货地址
type ShippingAddress struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
}

// OrderRecordItem 订单记录中的商品快照
type OrderRecordItem struct {
	ID       ProductID `json:"id"`
	Name     string    `json:"name"`
	Price    Money     `json:"price"`
	Quantity int       `json:"quantity"`
	Total    Money     `json:"total"`
}

// OrderRecord 提交给订单后端的订单记录
type OrderRecord struct {
	OrderID         string            `json:"orderId"`
	OrderDate       time.Time         `json:"orderDate"`
	Items           []OrderRecordItem `json:"items"`
	Subtotal        Money             `json:"subtotal"`
	Shipping        Money             `json:"shipping"`
	Tax             Money             `json:"tax"`
	Total           Money             `json:"total"`
	Currency        string            `json:"currency,omitempty"`
	Customer        Customer          `json:"customer"`
	ShippingAddress ShippingAddress   `json:"shippingAddress"`
}
