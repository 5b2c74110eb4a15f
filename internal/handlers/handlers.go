package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	qr "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/playontable/backend/internal/models"
	"github.com/playontable/backend/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Handlers struct {
	dispatcher *relay.Dispatcher
	registry   *relay.Registry
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

func NewHandlers(dispatcher *relay.Dispatcher, registry *relay.Registry, log *zap.Logger) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		registry:   registry,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		log:        log,
	}
}

// Health answers liveness checks. Also served on HEAD / for monitors
// that only issue head requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// RoomQR renders a scannable PNG of a live room's join code.
func (h *Handlers) RoomQR(w http.ResponseWriter, r *http.Request) {
	code := h.dispatcher.Policy().NormalizeCode(chi.URLParam(r, "code"))
	if _, ok := h.registry.Lookup(code); !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	png, err := qr.Encode(code, qr.Medium, 256)
	if err != nil {
		h.log.Error("qr encode failed", zap.String("code", code), zap.Error(err))
		http.Error(w, "qr encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// RelayWS upgrades the connection and runs one session until the stream
// ends, for any reason.
func (h *Handlers) RelayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := relay.NewSession()
	go h.writePump(conn, sess)
	h.readPump(conn, sess)
}

// readPump decodes inbound frames and hands them to the dispatcher.
// The deferred teardown runs on every exit path — clean close, abrupt
// close, or a panic out of a handler — so the session leaves its room
// and its outbound channel closes exactly once.
func (h *Handlers) readPump(conn *websocket.Conn, sess *relay.Session) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("session handler panic",
				zap.String("session", sess.ID),
				zap.Any("panic", rec))
		}
		h.dispatcher.Detach(sess)
		conn.Close()
	}()

	h.dispatcher.Attach(sess)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error",
					zap.String("session", sess.ID), zap.Error(err))
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.log.Debug("dropping undecodable frame",
				zap.String("session", sess.ID), zap.Error(err))
			continue
		}
		h.dispatcher.Dispatch(sess, env)
	}
}

// writePump drains the session's outbound channel onto the socket and
// keeps the connection alive with pings. Each session has its own pump,
// which is what isolates one recipient's slow or failed writes from its
// room-mates during a broadcast.
func (h *Handlers) writePump(conn *websocket.Conn, sess *relay.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-sess.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(env); err != nil {
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
