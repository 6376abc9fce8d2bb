package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"livequiz-service/internal/app"
	"livequiz-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 32
)

// WSHandler upgrades connections and bridges them into the dispatcher.
type WSHandler struct {
	registry   *app.Registry
	dispatcher *app.Dispatcher
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(registry *app.Registry, dispatcher *app.Dispatcher, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ServeWS runs one connection: register, pump events both ways,
// unregister on any exit so the dispatcher's disconnect cleanup fires.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	// send is never closed: a broadcast that looked the connection up
	// right before Unregister may still deliver into it, and a send on a
	// closed channel would panic inside another connection's goroutine.
	// The write pump is stopped through stop instead; late events land in
	// the buffer and are dropped with it.
	send := make(chan domain.OutboundEvent, sendBufferSize)
	stop := make(chan struct{})
	writerDone := make(chan struct{})

	h.registry.Register(connID, func(ev domain.OutboundEvent) {
		select {
		case send <- ev:
		default:
			// Slow consumer; dropping beats stalling the hub.
			h.logger.Warn("send buffer full, dropping event",
				zap.String("conn_id", connID),
				zap.String("event", ev.Type))
		}
	})
	defer func() {
		h.registry.Unregister(connID)
		close(stop)
		<-writerDone
	}()

	go h.writePump(conn, connID, send, stop, writerDone)

	conn.SetReadLimit(65536)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := domain.DecodeInbound(env)
		if err != nil {
			// Malformed events are dropped; the connection stays up.
			h.logger.Warn("dropping malformed event",
				zap.String("conn_id", connID),
				zap.Error(err))
			continue
		}
		h.dispatcher.HandleEvent(r.Context(), connID, ev)
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, connID string, send <-chan domain.OutboundEvent, stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	for {
		select {
		case <-stop:
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(outboundEnvelope{Type: ev.Type, Payload: ev.Payload}); err != nil {
				h.logger.Debug("ws write failed", zap.String("conn_id", connID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
