package public

import (
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// SubmitCheckoutRequest 提交订单请求
type SubmitCheckoutRequest struct {
	Customer        models.Customer        `json:"customer"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
}

// InitiatePaymentRequest 发起手机支付请求
type InitiatePaymentRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// GetCheckout 获取结账视图
func (h *Handler) GetCheckout(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	view := session.Checkout.View()
	if err := session.Checkout.LastError(); err != nil && view.LastError == "" {
		view.LastError = err.Error()
	}
	response.Success(c, view)
}

// OpenCheckout 打开结账
func (h *Handler) OpenCheckout(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	view, err := session.Checkout.Open()
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, view)
}

// ResumeCheckout 提交失败后回到编辑
func (h *Handler) ResumeCheckout(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	view, err := session.Checkout.Resume()
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, view)
}

// CancelCheckout 关闭结账，购物车保持不变
func (h *Handler) CancelCheckout(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	if err := session.Checkout.Cancel(); err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, session.Checkout.View())
}

// SubmitCheckout 提交订单
func (h *Handler) SubmitCheckout(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req SubmitCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	confirmation, err := session.Checkout.Submit(c.Request.Context(), req.Customer, req.ShippingAddress)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.SuccessWithMsg(c, "order confirmed", confirmation)
}

// InitiatePayment 发起手机 STK 支付
func (h *Handler) InitiatePayment(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req InitiatePaymentRequest
	// 限流中间件可能已读取请求体
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	ack, err := session.Checkout.InitiatePayment(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.SuccessWithMsg(c, "payment initiated", ack)
}
