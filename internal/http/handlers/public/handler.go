package public

import "github.com/saleshop/internal/provider"

// Handler 店面会话接口处理器入口
// 说明：所有接口均作用于当前令牌绑定的购物会话。
type Handler struct {
	*provider.Container
}

// New 创建店面处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
