package models

// LineItem 购物车行项目，JSON 结构即持久化快照格式
type LineItem struct {
	ProductID ProductID `json:"id"`              // 商品ID
	Name      string    `json:"name"`            // 商品名称
	UnitPrice Money     `json:"price"`           // 单价（加入时的促销价）
	ImageURL  string    `json:"image,omitempty"` // 图片地址
	Quantity  int       `json:"quantity"`        // 数量，始终 >= 1
}

// LineTotal 行小计
func (i LineItem) LineTotal() Money {
	return i.UnitPrice.MulInt(i.Quantity)
}
