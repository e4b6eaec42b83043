package realtime

import (
	"net/http"

	"github.com/Dipanshuofficial/Flow/pkg"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and attaches the canvas to the hub. Browsers cannot set
// headers on a WebSocket handshake, so the JWT travels in the token query parameter.
// An empty secret disables the check.
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	if jwtSecret != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if _, err := pkg.ValidateToken(token, jwtSecret); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := NewClient(hub, conn)
	if !hub.enqueue(hub.register, client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
