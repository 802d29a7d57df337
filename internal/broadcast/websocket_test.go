package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/camsync/internal/syncproto"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) syncproto.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := syncproto.Decode(b)
	if err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return msg
}

func TestWebSocketSession(t *testing.T) {
	svc := newTestService()
	srv := httptest.NewServer(http.HandlerFunc(svc.ServeWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if info, ok := readMessage(t, conn).(syncproto.ServerInfo); !ok || info.ServerStart != 1_000_000 {
		t.Fatalf("first message = %#v", info)
	}

	var last int64
	for range 5 {
		tick, ok := readMessage(t, conn).(syncproto.ClockTick)
		if !ok {
			t.Fatal("expected clock tick")
		}
		if tick.Now < last {
			t.Errorf("tick went backwards: %d < %d", tick.Now, last)
		}
		last = tick.Now
	}
}

func TestWebSocketDisconnectEndsSession(t *testing.T) {
	svc := newTestService()
	srv := httptest.NewServer(http.HandlerFunc(svc.ServeWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	readMessage(t, conn)
	if n := svc.Sessions(); n != 1 {
		t.Errorf("Sessions() = %d, want 1", n)
	}

	conn.Close()

	deadline := time.Now().Add(time.Second)
	for svc.Sessions() != 0 && time.Now().Before(deadline) {
		time.Sleep(testInterval)
	}
	if n := svc.Sessions(); n != 0 {
		t.Errorf("Sessions() = %d after disconnect, want 0", n)
	}
}

func TestWebSocketShutdownClosesClients(t *testing.T) {
	svc := newTestService()
	srv := httptest.NewServer(http.HandlerFunc(svc.ServeWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	readMessage(t, conn)

	svc.Shutdown()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("expected normal closure, got %v", err)
			}
			return
		}
	}
}

func TestWebSocketRejectsPlainHTTP(t *testing.T) {
	svc := newTestService()
	rec := httptest.NewRecorder()
	svc.ServeWebSocket(rec, httptest.NewRequest(http.MethodGet, "/sync", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
