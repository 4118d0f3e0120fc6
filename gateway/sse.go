package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/example/drivethru/pkg/board"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// streamOrders godoc
// @Summary Kitchen display feed over Server-Sent Events
// @Description Same events as /ws/kitchen. The SSE event name is the event type and the id is its seq.
// @Tags kitchen
// @Produce text/event-stream
// @Router /api/orders/stream [get]
func (g *Gateway) streamOrders(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Query("name")
	if name == "" {
		name = "sse:" + c.ClientIP()
	}

	sub, err := g.board.Subscribe(ctx, name)
	if err != nil {
		g.writeError(c, err)
		return
	}
	defer g.board.Unsubscribe(sub.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	w := c.Writer
	fmt.Fprintf(w, ": connected\n\n")
	fmt.Fprintf(w, "retry: 2000\n\n")
	w.Flush()

	keepalive := g.config.PingInterval
	if keepalive <= 0 {
		keepalive = defaultPingInterval
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			w.Flush()

		case ev, ok := <-sub.Events:
			if !ok {
				// Dropped by the board; the browser reconnects and gets a fresh snapshot.
				g.logger.Info("SSE feed closed", zap.String("subscriber_id", sub.ID))
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				g.logger.Warn("SSE write failed", zap.String("subscriber_id", sub.ID), zap.Error(err))
				return
			}
			w.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, ev board.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", ev.Type, ev.Seq, data)
	return err
}
