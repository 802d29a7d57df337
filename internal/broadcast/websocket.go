package broadcast

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/camsync/internal/syncproto"
)

const (
	writeTimeout = 5 * time.Second
	maxReadSize  = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Players are served from any origin
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and runs a session over it until the
// client disconnects or the service shuts down.
func (s *Service) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	sess, err := s.Open(r.Context(), TransportWebSocket, func(msg syncproto.Message) error {
		b, err := syncproto.Encode(msg)
		if err != nil {
			return err
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, b)
	})
	if err != nil {
		closeConn(conn, websocket.CloseGoingAway, "server shutting down")
		return
	}

	// Client frames carry nothing; reading only detects disconnects
	go func() {
		defer sess.Close()
		conn.SetReadLimit(maxReadSize)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	<-sess.Done()
	closeConn(conn, websocket.CloseNormalClosure, "")
}

func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
