package public

import (
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/service"

	"github.com/gin-gonic/gin"
)

// CartItemRequest 加入购物车请求
type CartItemRequest struct {
	ProductID models.ProductID `json:"product_id" binding:"required"`
}

// CartMutationResponse 购物车变更响应
type CartMutationResponse struct {
	Changed bool             `json:"changed"`
	Cart    service.CartView `json:"cart"`
}

// GetCart 获取购物车
func (h *Handler) GetCart(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	response.Success(c, session.CartView())
}

// AddCartItem 按商品 ID 加入购物车，数量 +1
func (h *Handler) AddCartItem(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if !ensureCatalog(c, session) {
		return
	}
	item, err := session.AddToCart(c.Request.Context(), req.ProductID)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, gin.H{
		"item": item,
		"cart": session.CartView(),
	})
}

// RemoveCartItem 删除购物车行
func (h *Handler) RemoveCartItem(c *gin.Context) {
	h.mutateCartItem(c, func(s *service.Session, c *gin.Context, id models.ProductID) bool {
		return s.RemoveFromCart(c.Request.Context(), id)
	})
}

// IncrementCartItem 数量 +1
func (h *Handler) IncrementCartItem(c *gin.Context) {
	h.mutateCartItem(c, func(s *service.Session, c *gin.Context, id models.ProductID) bool {
		return s.IncrementItem(c.Request.Context(), id)
	})
}

// DecrementCartItem 数量 -1，最少保留 1
func (h *Handler) DecrementCartItem(c *gin.Context) {
	h.mutateCartItem(c, func(s *service.Session, c *gin.Context, id models.ProductID) bool {
		return s.DecrementItem(c.Request.Context(), id)
	})
}

func (h *Handler) mutateCartItem(c *gin.Context, fn func(*service.Session, *gin.Context, models.ProductID) bool) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	id, ok := productIDParam(c)
	if !ok {
		return
	}
	changed := fn(session, c, id)
	response.Success(c, CartMutationResponse{
		Changed: changed,
		Cart:    session.CartView(),
	})
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	session.ClearCart(c.Request.Context())
	response.Success(c, CartMutationResponse{
		Changed: true,
		Cart:    session.CartView(),
	})
}
