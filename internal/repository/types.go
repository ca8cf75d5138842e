package repository

// ReceiptListFilter 查询订单回执列表的过滤条件
type ReceiptListFilter struct {
	Page      int
	PageSize  int
	SessionID string
	Channel   string
}
