package realtime

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"consultlaw-api/internal/model"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// browsers connect from the frontend origin; the token is the gate
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsConn struct {
	*websocket.Conn
}

func (c wsConn) WriteJSON(v any) error {
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

// ServeWebSocket upgrades an already authenticated request and serves the
// session until the browser disconnects. Callers must reject anonymous
// requests before calling it.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request, who model.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFrameSize)

	err = h.Serve(r.Context(), who, wsConn{conn})
	if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.log.WithError(err).WithField("user", who.ID).Info("websocket closed unexpectedly")
	}
}
