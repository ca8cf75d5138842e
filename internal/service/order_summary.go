package service

import (
	"fmt"

	"github.com/saleshop/internal/models"

	"github.com/shopspring/decimal"
)

// PricingPolicy 计价策略：固定运费、包邮门槛、税率
type PricingPolicy struct {
	FlatShippingFee       models.Money    `json:"flatShippingFee"`
	FreeShippingThreshold models.Money    `json:"freeShippingThreshold"`
	TaxRate               decimal.Decimal `json:"taxRate"`
}

// NewPricingPolicy 创建并校验计价策略
func NewPricingPolicy(flatShippingFee, freeShippingThreshold, taxRate decimal.Decimal) (PricingPolicy, error) {
	policy := PricingPolicy{
		FlatShippingFee:       models.NewMoney(flatShippingFee),
		FreeShippingThreshold: models.NewMoney(freeShippingThreshold),
		TaxRate:               taxRate,
	}
	if err := policy.Validate(); err != nil {
		return PricingPolicy{}, err
	}
	return policy, nil
}

// Validate 运费与门槛不能为负，税率取值 [0, 1)
func (p PricingPolicy) Validate() error {
	if p.FlatShippingFee.IsNegative() {
		return fmt.Errorf("%w: flat shipping fee is negative", ErrInvalidPricingPolicy)
	}
	if p.FreeShippingThreshold.IsNegative() {
		return fmt.Errorf("%w: free shipping threshold is negative", ErrInvalidPricingPolicy)
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate %s outside [0,1)", ErrInvalidPricingPolicy, p.TaxRate.String())
	}
	return nil
}

// OrderSummary 订单金额汇总（按需计算，不缓存）
type OrderSummary struct {
	Subtotal     models.Money `json:"subtotal"`
	ShippingCost models.Money `json:"shipping"`
	Tax          models.Money `json:"tax"`
	Total        models.Money `json:"total"`
	FreeShipping bool         `json:"freeShipping"`
	ItemCount    int          `json:"itemCount"`
}

// ComputeSummary 计算小计、运费、税费与总额，精确小数不做舍入
func ComputeSummary(items []models.LineItem, policy PricingPolicy) OrderSummary {
	subtotal := models.ZeroMoney
	count := 0
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
		count += item.Quantity
	}

	shipping := models.ZeroMoney
	freeShipping := false
	if !subtotal.IsZero() {
		if subtotal.GreaterThanOrEqual(policy.FreeShippingThreshold.Decimal) {
			freeShipping = true
		} else {
			shipping = policy.FlatShippingFee
		}
	}
	tax := models.NewMoney(subtotal.Mul(policy.TaxRate))
	total := subtotal.Add(shipping).Add(tax)

	return OrderSummary{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        total,
		FreeShipping: freeShipping,
		ItemCount:    count,
	}
}
