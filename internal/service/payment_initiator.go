package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/payment/mpesa"
)

// MpesaPaymentInitiator 通过 STK 推送发起支付
type MpesaPaymentInitiator struct {
	client *mpesa.Client
}

// NewMpesaPaymentInitiator 创建支付发起器
func NewMpesaPaymentInitiator(client *mpesa.Client) *MpesaPaymentInitiator {
	return &MpesaPaymentInitiator{client: client}
}

// InitiatePayment 实现 PaymentInitiator
func (p *MpesaPaymentInitiator) InitiatePayment(ctx context.Context, phoneNumber string, amount models.Money) (*PaymentAck, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("%w: mpesa client not configured", ErrSubmission)
	}
	result, err := p.client.STKPush(ctx, mpesa.STKPushInput{
		PhoneNumber: phoneNumber,
		Amount:      amount.Decimal,
	})
	if err != nil {
		if errors.Is(err, mpesa.ErrPhoneInvalid) {
			verr := &ValidationError{}
			verr.add("phoneNumber", fieldReason("mpesa_phone"))
			return nil, verr
		}
		return nil, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return &PaymentAck{
		PhoneNumber: phoneNumber,
		Amount:      amount,
		Message:     result.Message,
		Reference:   result.CheckoutID,
	}, nil
}
