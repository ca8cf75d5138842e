package public

import (
	"io"
	"time"

	"github.com/saleshop/internal/logger"
	"github.com/saleshop/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	eventStreamBuffer    = 32
	eventStreamHeartbeat = 25 * time.Second
)

// StreamEvents 以 SSE 推送会话通知；消费过慢时丢弃事件，不阻塞会话变更
func (h *Handler) StreamEvents(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		return
	}
	events := make(chan service.Event, eventStreamBuffer)
	unsubscribe := session.Notifier.Subscribe(func(e service.Event) {
		select {
		case events <- e:
		default:
		}
	})
	defer unsubscribe()
	log := logger.ForSession(session.ID)
	log.Debugw("event_stream_opened", "subscribers", session.Notifier.Subscribers())
	defer log.Debugw("event_stream_closed")

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{
		"session_id":     session.ID,
		"total_quantity": session.Cart.TotalQuantity(),
	})

	heartbeat := time.NewTicker(eventStreamHeartbeat)
	defer heartbeat.Stop()
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e := <-events:
			c.SSEvent(e.Name, e)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
