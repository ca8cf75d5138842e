package public

import (
	"strconv"

	handlershared "github.com/saleshop/internal/http/handlers/shared"
	"github.com/saleshop/internal/http/response"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListReceipts 当前会话已归档的订单回执
func (h *Handler) ListReceipts(c *gin.Context) {
	sessionID, ok := handlershared.GetSessionID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	if h.OrderReceiptRepo == nil {
		response.SuccessWithPage(c, []models.OrderReceipt{}, response.Pagination{Page: page, PageSize: pageSize})
		return
	}
	receipts, total, err := h.OrderReceiptRepo.List(repository.ReceiptListFilter{
		Page:      page,
		PageSize:  pageSize,
		SessionID: sessionID,
		Channel:   c.Query("channel"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "receipt list failed", err)
		return
	}
	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, receipts, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
