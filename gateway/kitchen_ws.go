package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteTimeout = 10 * time.Second
	maxClientMessage    = 4096
)

// Client commands on /ws/kitchen.
const (
	commandStatus = "status"
	commandDelete = "delete"
	commandUndo   = "undo"
)

type kitchenCommand struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	KitchenStatus string `json:"kitchenStatus,omitempty"`
}

// kitchenReply goes only to the client that sent the command. It is written
// after the feed events the command produced.
type kitchenReply struct {
	Type         string `json:"type"`
	SessionID    string `json:"sessionId,omitempty"`
	Request      string `json:"request,omitempty"`
	Error        string `json:"error,omitempty"`
	UndoWindowMs int64  `json:"undoWindowMs,omitempty"`
}

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// kitchenWriter is the only goroutine writing to a kitchen connection.
type kitchenWriter struct {
	ws           wsWriter
	events       <-chan board.Event
	replies      <-chan kitchenReply
	pingInterval time.Duration
	writeTimeout time.Duration
	now          func() time.Time
}

// Run writes until ctx is done, the feed closes or a write fails.
// A closed feed means the board dropped this client: it is told to reconnect.
func (w *kitchenWriter) Run(ctx context.Context) error {
	pingInterval := w.pingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	if w.writeTimeout <= 0 {
		w.writeTimeout = defaultWriteTimeout
	}
	if w.now == nil {
		w.now = time.Now
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()
	defer w.ws.Close()

	for {
		select {
		case <-ctx.Done():
			w.closeWith(websocket.CloseNormalClosure, "")
			return nil

		case <-pingTicker.C:
			if err := w.ws.WriteControl(websocket.PingMessage, nil, w.now().Add(w.writeTimeout)); err != nil {
				return err
			}

		case reply := <-w.replies:
			// The board publishes before it answers, so events already queued
			// go out ahead of the reply to the command that caused them.
			if open, err := w.flushEvents(); !open || err != nil {
				return err
			}
			if err := w.writeJSON(reply); err != nil {
				return err
			}

		case ev, ok := <-w.events:
			if !ok {
				w.closeWith(websocket.CloseTryAgainLater, "resync")
				return nil
			}
			if err := w.writeJSON(ev); err != nil {
				return err
			}
		}
	}
}

// flushEvents writes the events already queued without waiting for more.
// It reports false once the feed is closed and the client was told to resync.
func (w *kitchenWriter) flushEvents() (bool, error) {
	for {
		select {
		case ev, ok := <-w.events:
			if !ok {
				w.closeWith(websocket.CloseTryAgainLater, "resync")
				return false, nil
			}
			if err := w.writeJSON(ev); err != nil {
				return false, err
			}
		default:
			return true, nil
		}
	}
}

func (w *kitchenWriter) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := w.ws.SetWriteDeadline(w.now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

func (w *kitchenWriter) closeWith(code int, text string) {
	_ = w.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), w.now().Add(w.writeTimeout))
}

// kitchenSocket godoc
// @Summary Kitchen display feed
// @Description Sends orders:init first, then order:new, order:update and order:delete as JSON text frames.
// @Description Accepts {"type":"status"|"delete"|"undo","sessionId":"...","kitchenStatus":"..."}.
// @Tags kitchen
// @Router /ws/kitchen [get]
func (g *Gateway) kitchenSocket(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		name = "kds:" + c.ClientIP()
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := g.board.Subscribe(ctx, name)
	if err != nil {
		g.logger.Error("Kitchen subscribe failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "board unavailable"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}
	defer g.board.Unsubscribe(sub.ID)

	logger := g.logger.With(zap.String("subscriber_id", sub.ID), zap.String("name", name))
	logger.Info("Kitchen display connected")

	replies := make(chan kitchenReply, 16)
	writer := &kitchenWriter{
		ws:           conn,
		events:       sub.Events,
		replies:      replies,
		pingInterval: g.config.PingInterval,
		writeTimeout: g.config.WriteTimeout,
	}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := writer.Run(ctx); err != nil {
			logger.Info("Kitchen display write failed", zap.Error(err))
		}
	}()

	g.readKitchen(ctx, conn, replies, logger)
	cancel()
	<-writerDone
	logger.Info("Kitchen display disconnected")
}

// readKitchen handles client commands until the connection fails.
func (g *Gateway) readKitchen(ctx context.Context, conn *websocket.Conn, replies chan<- kitchenReply, logger *zap.Logger) {
	pingInterval := g.config.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	readWait := 2 * pingInterval

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("Kitchen display read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var cmd kitchenCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			g.reply(ctx, replies, kitchenReply{Type: "error", Error: "malformed message"})
			continue
		}
		if reply, ok := g.handleKitchenCommand(ctx, cmd, logger); ok {
			g.reply(ctx, replies, reply)
		}
	}
}

// handleKitchenCommand applies cmd to the board. Results reach every display
// through the feed; only failures and delete acknowledgements are replied.
func (g *Gateway) handleKitchenCommand(ctx context.Context, cmd kitchenCommand, logger *zap.Logger) (kitchenReply, bool) {
	var err error
	switch cmd.Type {
	case commandStatus:
		_, err = g.board.SetKitchenStatus(ctx, cmd.SessionID, models.KitchenStatus(cmd.KitchenStatus))
	case commandDelete:
		if _, err = g.board.Delete(ctx, cmd.SessionID); err == nil {
			return kitchenReply{
				Type:         "order:deleted",
				SessionID:    cmd.SessionID,
				UndoWindowMs: g.board.UndoWindow().Milliseconds(),
			}, true
		}
	case commandUndo:
		_, err = g.board.Undo(ctx, cmd.SessionID)
	default:
		return kitchenReply{Type: "error", Request: cmd.Type, Error: "unknown message type"}, true
	}

	if err != nil {
		logger.Info("Kitchen command rejected",
			zap.String("type", cmd.Type),
			zap.String("session_id", cmd.SessionID),
			zap.Error(err))
		return kitchenReply{Type: "error", Request: cmd.Type, SessionID: cmd.SessionID, Error: err.Error()}, true
	}
	return kitchenReply{}, false
}

func (g *Gateway) reply(ctx context.Context, replies chan<- kitchenReply, r kitchenReply) {
	select {
	case replies <- r:
	case <-ctx.Done():
	}
}
