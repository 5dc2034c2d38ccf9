package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
	"fleetportal/internal/statuscache"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestSnapshotReplayOnConnect(t *testing.T) {
	snapshots := func() map[string]*domain.StatusReport {
		return map[string]*domain.StatusReport{
			"HOST1": {HostID: "HOST1", TotalPlayers: 9},
		}
	}
	h := New(logger.New("error", false), snapshots)
	go h.Run()
	defer h.Stop()

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	msg := readMessage(t, conn)
	if msg.Type != "snapshot" {
		t.Fatalf("first message type = %q, want snapshot", msg.Type)
	}
	raw, _ := json.Marshal(msg.Payload)
	var got map[string]*domain.StatusReport
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode snapshot payload: %v", err)
	}
	if got["HOST1"] == nil || got["HOST1"].TotalPlayers != 9 {
		t.Fatalf("snapshot payload = %v", got)
	}
}

func TestStatusEventReachesClient(t *testing.T) {
	h := New(logger.New("error", false), nil)
	go h.Run()
	defer h.Stop()

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	h.OnStatus(statuscache.Event{
		HostID: "HOST2",
		Report: &domain.StatusReport{HostID: "HOST2", OnlineServers: 3},
	})

	msg := readMessage(t, conn)
	if msg.Type != "status_update" {
		t.Fatalf("type = %q, want status_update", msg.Type)
	}
}

func TestBroadcastEventToMultipleClients(t *testing.T) {
	h := New(logger.New("error", false), nil)
	go h.Run()
	defer h.Stop()

	c1, cleanup1 := dialHub(t, h)
	defer cleanup1()
	c2, cleanup2 := dialHub(t, h)
	defer cleanup2()

	// Let both registrations land before broadcasting.
	time.Sleep(50 * time.Millisecond)
	h.BroadcastEvent("action", map[string]string{"host_id": "X", "action": "stop_all"})

	for _, conn := range []*websocket.Conn{c1, c2} {
		msg := readMessage(t, conn)
		if msg.Type != "action" {
			t.Fatalf("type = %q, want action", msg.Type)
		}
	}
}
