package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
)

func testLogger(t *testing.T) logger.Logger {
	t.Helper()
	return logger.New("error", false)
}

func hostFor(t *testing.T, srv *httptest.Server) *domain.Host {
	t.Helper()
	addr := strings.TrimPrefix(srv.URL, "http://")
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		t.Fatalf("unexpected test server addr %q", addr)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return &domain.Host{HostID: "TEST", Address: parts[0], Port: port, AgentKey: "sekret"}
}

func TestSendSuccess(t *testing.T) {
	var gotPath, gotKey, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	d := NewDispatcher(testLogger(t), time.Second)
	res, err := d.Send(context.Background(), hostFor(t, srv), Command{Action: ActionStopInstance, InstanceID: 7})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/api/servers/7/stop" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("method = %q", gotMethod)
	}
	if gotKey != "sekret" {
		t.Fatalf("X-Api-Key = %q", gotKey)
	}
	var body struct{ OK bool }
	if err := json.Unmarshal(res.Body, &body); err != nil || !body.OK {
		t.Fatalf("body = %s, err = %v", res.Body, err)
	}
}

func TestSendRejectedCarriesAgentBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "match in progress", http.StatusConflict)
	}))
	defer srv.Close()

	d := NewDispatcher(testLogger(t), time.Second)
	_, err := d.Send(context.Background(), hostFor(t, srv), Command{Action: ActionStopAll})
	if domain.KindOf(err) != domain.KindAgentRejected {
		t.Fatalf("kind = %s, want agent_rejected (%v)", domain.KindOf(err), err)
	}
	if !strings.Contains(err.Error(), "match in progress") {
		t.Fatalf("err = %v, want agent body preserved", err)
	}
}

func TestSendUnreachable(t *testing.T) {
	// Bind a port then close it so the connection is refused.
	srv := httptest.NewServer(http.NotFoundHandler())
	host := hostFor(t, srv)
	srv.Close()

	d := NewDispatcher(testLogger(t), time.Second)
	_, err := d.Send(context.Background(), host, Command{Action: ActionStartAll})
	if domain.KindOf(err) != domain.KindAgentUnreachable {
		t.Fatalf("kind = %s, want agent_unreachable (%v)", domain.KindOf(err), err)
	}
}

func TestSendUnknownAction(t *testing.T) {
	d := NewDispatcher(testLogger(t), time.Second)
	_, err := d.Send(context.Background(), &domain.Host{}, Command{Action: "reboot_datacenter"})
	if domain.KindOf(err) != domain.KindInvalid {
		t.Fatalf("kind = %s, want invalid", domain.KindOf(err))
	}
}

func TestSendInstanceActionNeedsID(t *testing.T) {
	d := NewDispatcher(testLogger(t), time.Second)
	_, err := d.Send(context.Background(), &domain.Host{}, Command{Action: ActionRestartInstance})
	if domain.KindOf(err) != domain.KindInvalid {
		t.Fatalf("kind = %s, want invalid", domain.KindOf(err))
	}
}

func TestSendBodyAndMethodPerAction(t *testing.T) {
	var gotMethod, gotCT string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotCT = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(testLogger(t), time.Second)
	payload := map[string]any{"count": 4}
	if _, err := d.Send(context.Background(), hostFor(t, srv), Command{Action: ActionScaleTo, Payload: payload}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotMethod != http.MethodPost || gotCT != "application/json" {
		t.Fatalf("method = %q, content-type = %q", gotMethod, gotCT)
	}
	if gotBody["count"] != float64(4) {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestRequiredRole(t *testing.T) {
	tests := []struct {
		action Action
		want   domain.Role
	}{
		{ActionStartInstance, domain.RoleOperator},
		{ActionStopInstance, domain.RoleOperator},
		{ActionRestartInstance, domain.RoleOperator},
		{ActionStartAll, domain.RoleOperator},
		{ActionStopAll, domain.RoleOperator},
		{ActionRestartAll, domain.RoleOperator},
		{ActionScaleTo, domain.RoleOperator},
		{ActionBroadcastMessage, domain.RoleOperator},
		{ActionDeleteInstance, domain.RoleAdmin},
		{ActionAddInstance, domain.RoleAdmin},
		{ActionGetConfig, domain.RoleAdmin},
		{ActionSetConfig, domain.RoleAdmin},
	}
	for _, tt := range tests {
		role, ok := RequiredRole(tt.action)
		if !ok {
			t.Fatalf("RequiredRole(%s): unknown", tt.action)
		}
		if role != tt.want {
			t.Fatalf("RequiredRole(%s) = %s, want %s", tt.action, role, tt.want)
		}
	}

	if _, ok := RequiredRole("nope"); ok {
		t.Fatal("unknown action reported as known")
	}
}
