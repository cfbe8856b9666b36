// Package events streams session changes to browser clients over a websocket.
package events

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chatService "github.com/zhouzirui/z-tavern/local/internal/service/chat"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	queueSize    = 32
)

// Source is the part of the session the stream needs.
type Source interface {
	Subscribe(fn chatService.Listener) func()
	Snapshot() chatService.Snapshot
}

// WebSocketHandler WebSocket事件推送处理器
type WebSocketHandler struct {
	session  Source
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(session Source, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		session: session,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.With(zap.String("component", "events")),
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/session/events", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接，先推送快照，再推送会话事件
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	queue := make(chan chatService.Event, queueSize)
	unsubscribe := h.session.Subscribe(func(ev chatService.Event) {
		select {
		case queue <- ev:
		default:
			h.log.Warn("event dropped, client too slow", zap.String("kind", string(ev.Kind)))
		}
	})
	defer unsubscribe()

	h.log.Info("client connected", zap.String("remote", r.RemoteAddr))

	go h.readLoop(conn, cancel)

	if err := h.write(conn, "snapshot", h.session.Snapshot()); err != nil {
		return
	}
	h.writeLoop(ctx, conn, queue)
	h.log.Info("client disconnected", zap.String("remote", r.RemoteAddr))
}

// readLoop 丢弃客户端消息，只用于感知断开与 pong
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Warn("read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writeLoop 是连接上唯一的写者
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, queue <-chan chatService.Event) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-queue:
			if err := h.write(conn, "event", ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, kind string, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(outgoingMessage{Type: kind, Data: data, Timestamp: time.Now().Unix()})
	if err != nil {
		h.log.Warn("write failed", zap.Error(err))
	}
	return err
}
