package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/kbx/internal/models"
	"github.com/desertthunder/kbx/internal/repositories"
	"github.com/desertthunder/kbx/internal/services"
	"github.com/desertthunder/kbx/internal/shared"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// RealtimeHandler streams a change feed topic over a websocket, one JSON event per text frame.
//
// When the feed ends the socket is closed, which clients observe as a dropped subscription.
type RealtimeHandler struct {
	backend  *repositories.Backend
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewRealtimeHandler creates the websocket handler for backend.
func NewRealtimeHandler(backend *repositories.Backend, logger *log.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		backend: backend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     sameOrigin,
		},
		logger: shared.WithLogger(logger, "handler", "realtime"),
	}
}

func (h *RealtimeHandler) Routes() []string {
	return []string{services.RealtimePath}
}

func (h *RealtimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic, err := services.ParseTopicQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.backend.WithUser(UserFrom(r.Context())).Subscribe(ctx, topic)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := h.logger.With("topic", topic.String())
	logger.Debug("client subscribed")

	go h.readPump(conn, cancel)
	if err := h.writePump(ctx, conn, sub); err != nil {
		logger.Debug("client gone", "error", err)
	}
}

// readPump discards client frames and cancels ctx when the peer goes away.
func (h *RealtimeHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *RealtimeHandler) writePump(ctx context.Context, conn *websocket.Conn, sub models.Subscription) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				reason := "feed closed"
				if err := sub.Err(); err != nil {
					reason = err.Error()
				}
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
				return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			}
			data, err := models.EncodeEvent(ev)
			if err != nil {
				h.logger.Error("failed to encode event", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// sameOrigin accepts non-browser clients and browsers on the server's own host.
func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	return strings.Contains(origin, "://"+strings.TrimSpace(r.Host))
}
