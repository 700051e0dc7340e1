package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/stalink/internal/accounts/network"
	"github.com/nerrad567/stalink/internal/infrastructure/config"
	"github.com/nerrad567/stalink/internal/infrastructure/logging"
	"github.com/nerrad567/stalink/internal/mediator"
	"github.com/nerrad567/stalink/internal/station"
	"github.com/nerrad567/stalink/internal/timer"
)

// fakeNetwork answers network pulls with a fixed state, or ErrNotReady when nil.
type fakeNetwork struct {
	state *network.NetworkState
}

func (f *fakeNetwork) HandleEvent(_ *mediator.Account, ev mediator.Event) error {
	if f.state == nil {
		return network.ErrNotReady
	}
	req, err := mediator.Expect[*network.Request](ev.Payload)
	if err != nil {
		return err
	}
	req.Network = *f.state
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testServer returns a server on a fresh mediator. With netw nil no network
// account is registered.
func testServer(t *testing.T, netw *fakeNetwork) (*Server, *mediator.Account) {
	t.Helper()

	m := mediator.New(timer.NewManual())
	var netAcct *mediator.Account
	if netw != nil {
		var err error
		if netAcct, err = m.Register(network.Name, netw, 0); err != nil {
			t.Fatalf("register network: %v", err)
		}
	}

	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS:       testWSConfig(),
		Logger:   testLogger(),
		Mediator: m,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, netAcct
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

func connectedState() *network.NetworkState {
	return &network.NetworkState{
		State: network.Connected,
		IPv4:  station.IPv4FromNet(net.IPv4(10, 0, 0, 7), net.IPv4(10, 0, 0, 1), net.IPv4(255, 255, 255, 0)),
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	m := mediator.New(timer.NewManual())
	if _, err := New(Deps{Mediator: m}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without mediator should fail")
	}

	if _, err := New(Deps{Logger: testLogger(), Mediator: m}); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := New(Deps{Logger: testLogger(), Mediator: m}); err == nil {
		t.Error("second server on the same mediator should fail")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, nil)
	w := get(t, srv, "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t, nil)

	if w := get(t, srv, "/api/v1/health"); w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestNetwork(t *testing.T) {
	tests := []struct {
		name     string
		netw     *fakeNetwork
		wantCode int
		want     NetworkView
	}{
		{
			name:     "connected",
			netw:     &fakeNetwork{state: connectedState()},
			wantCode: http.StatusOK,
			want:     NetworkView{State: "connected", IP: "10.0.0.7", Gateway: "10.0.0.1", Netmask: "255.255.255.0"},
		},
		{
			name:     "disconnected",
			netw:     &fakeNetwork{state: &network.NetworkState{State: network.Disconnected}},
			wantCode: http.StatusOK,
			want:     NetworkView{State: "disconnected"},
		},
		{
			name:     "radio not ready",
			netw:     &fakeNetwork{},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "no network account",
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, tt.netw)
			w := get(t, srv, "/api/v1/network")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				var e Error
				if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
					t.Fatalf("unmarshal error body: %v", err)
				}
				if e.Code != ErrCodeUnavailable {
					t.Errorf("code = %q, want %q", e.Code, ErrCodeUnavailable)
				}
				return
			}
			var got NetworkView
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.want {
				t.Errorf("network = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAccounts(t *testing.T) {
	srv, _ := testServer(t, &fakeNetwork{})
	w := get(t, srv, "/api/v1/accounts")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Accounts []AccountView `json:"accounts"`
		Count    int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Accounts[0].Name != network.Name || resp.Accounts[1].Name != AccountName {
		t.Errorf("names = %s, %s", resp.Accounts[0].Name, resp.Accounts[1].Name)
	}
	if subs := resp.Accounts[0].Subscribers; len(subs) != 1 || subs[0] != AccountName {
		t.Errorf("network subscribers = %v, want [api]", subs)
	}
	if subs := resp.Accounts[1].Subscriptions; len(subs) != 1 || subs[0] != network.Name {
		t.Errorf("api subscriptions = %v, want [network]", subs)
	}
}

func TestReadOnly(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/health", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}

	if w := get(t, srv, "/api/v1/devices"); w.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := testServer(t, nil)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start should fail")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close before Start: %v", err)
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Close()

	if srv.Addr() == "" {
		t.Error("Addr() empty after Start")
	}
	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestWebSocketStream(t *testing.T) {
	srv, netAcct := testServer(t, &fakeNetwork{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelNetworkState}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var ack WSMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "sub-1" {
		t.Fatalf("ack = %+v", ack)
	}

	if n := netAcct.Publish(*connectedState()); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}

	var ev struct {
		Type      string      `json:"type"`
		EventType string      `json:"event_type"`
		Payload   NetworkView `json:"payload"`
	}
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != WSTypeEvent || ev.EventType != ChannelNetworkState {
		t.Errorf("event = %s/%s", ev.Type, ev.EventType)
	}
	if ev.Payload.State != "connected" || ev.Payload.IP != "10.0.0.7" {
		t.Errorf("payload = %+v", ev.Payload)
	}
}

func TestWebSocketUnknownMessage(t *testing.T) {
	srv, _ := testServer(t, nil)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{Type: "reboot", ID: "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != WSTypeError || msg.ID != "x" {
		t.Errorf("msg = %+v, want error for x", msg)
	}
}

func TestWebSocketSnapshotOnSubscribe(t *testing.T) {
	srv, netAcct := testServer(t, &fakeNetwork{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	netAcct.Publish(*connectedState())

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelNetworkState, "unknown"}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test deadline
	var ack WSMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if ack.Type != WSTypeResponse {
		t.Fatalf("ack = %+v", ack)
	}

	var ev struct {
		Type      string      `json:"type"`
		EventType string      `json:"event_type"`
		Payload   NetworkView `json:"payload"`
	}
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if ev.Type != WSTypeEvent || ev.EventType != ChannelNetworkState {
		t.Errorf("snapshot = %s/%s", ev.Type, ev.EventType)
	}
	if ev.Payload.State != "connected" || ev.Payload.IP != "10.0.0.7" {
		t.Errorf("payload = %+v", ev.Payload)
	}
}

func TestWebSocketSnapshotBeforePublish(t *testing.T) {
	srv, _ := testServer(t, &fakeNetwork{})
	if _, ok := srv.snapshot(ChannelNetworkState); ok {
		t.Error("snapshot before any publish should be empty")
	}
	if _, ok := srv.snapshot("other"); ok {
		t.Error("snapshot for unknown channel should be empty")
	}
}

func TestWSClientClosedDropsSends(t *testing.T) {
	c := &WSClient{send: make(chan []byte, 1), channels: make(map[string]struct{})}
	if !c.enqueue([]byte("a")) {
		t.Fatal("enqueue on open client failed")
	}
	if c.enqueue([]byte("b")) {
		t.Error("enqueue on full queue should fail")
	}

	c.close()
	c.close()
	if c.enqueue([]byte("c")) {
		t.Error("enqueue after close should fail")
	}
	if got := <-c.send; string(got) != "a" {
		t.Errorf("queued = %q, want a", got)
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
}
