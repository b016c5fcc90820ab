package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"creepworld.ai/internal/persistence/scripts"
	"creepworld.ai/internal/protocol"
	"creepworld.ai/internal/sim/engine"
	"creepworld.ai/internal/sim/script"
	"creepworld.ai/internal/sim/world"
	"creepworld.ai/internal/sim/world/model"
)

func validator(t *testing.T) *protocol.Validator {
	t.Helper()
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func runningEngine(t *testing.T) *engine.Engine {
	t.Helper()
	w := world.New("ws")
	w.SetIntervalMs(10)
	rn := model.RoomName{X: 0, Y: 0}
	r := model.NewRoom(rn, model.NewTerrain(model.Plain))
	r.AddStructure(&model.Controller{ObjectBase: model.ObjectBase{ID: "ctrl", Pos: model.Position{X: 30, Y: 30, Room: rn}}})
	w.AddRoom(r)

	e := engine.New(w, engine.Config{Script: script.DefaultConfig()}, engine.Deps{Store: scripts.NewMemStore()}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func adminURL(t *testing.T, e *engine.Engine) string {
	t.Helper()
	mux := http.NewServeMux()
	NewServer(e, validator(t), Config{ApplyTimeout: 2 * time.Second}, zap.NewNop()).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/admin"
}

func dial(t *testing.T, e *engine.Engine) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(adminURL(t, e), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req string) protocol.Response {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp protocol.Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

func TestAdminRoundTrip(t *testing.T) {
	e := runningEngine(t)
	conn := dial(t, e)

	if resp := roundTrip(t, conn, `{"type":"login","id":"1","player":"alice"}`); resp.OK || resp.Code != protocol.ErrUnknownPlayer {
		t.Fatalf("login before register: %+v", resp)
	}

	resp := roundTrip(t, conn, `{"type":"register","id":"2","player":"alice","script":"Memory.n = 1;"}`)
	if !resp.OK || resp.ID != "2" {
		t.Fatalf("register: %+v", resp)
	}
	if resp := roundTrip(t, conn, `{"type":"register","player":"bob"}`); resp.Code != protocol.ErrNoRoom {
		t.Fatalf("second register should find no room: %+v", resp)
	}
	if resp := roundTrip(t, conn, `{"type":"register","player":"alice"}`); resp.Code != protocol.ErrConflict {
		t.Fatalf("duplicate register: %+v", resp)
	}
	if resp := roundTrip(t, conn, `{"type":"login","player":"alice"}`); !resp.OK {
		t.Fatalf("login: %+v", resp)
	}

	if resp := roundTrip(t, conn, `{"type":"setScript","player":"alice","script":"Memory.n = 2;"}`); !resp.OK {
		t.Fatalf("setScript: %+v", resp)
	}
	resp = roundTrip(t, conn, `{"type":"getScript","player":"alice"}`)
	var sd protocol.ScriptData
	if err := json.Unmarshal(resp.Data, &sd); err != nil || sd.Script != "Memory.n = 2;" {
		t.Fatalf("getScript: %+v %v", resp, err)
	}

	resp = roundTrip(t, conn, `{"type":"getRoomData","room":"E0S0"}`)
	var rd world.RoomData
	if err := json.Unmarshal(resp.Data, &rd); err != nil {
		t.Fatalf("getRoomData: %+v %v", resp, err)
	}
	if rd.Room != "E0S0" || len(rd.Structures) != 2 || !strings.Contains(rd.Render, "S") {
		t.Fatalf("room data: %+v", rd)
	}
	if resp := roundTrip(t, conn, `{"type":"getRoomData","room":"W5N5"}`); resp.Code != protocol.ErrNotFound {
		t.Fatalf("missing room: %+v", resp)
	}
	if resp := roundTrip(t, conn, `{"type":"explode"}`); resp.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown type: %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	e := runningEngine(t)
	mux := http.NewServeMux()
	NewServer(e, validator(t), Config{}, nil).Routes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["ok"] != true {
		t.Fatalf("healthz: %s %v", rec.Body.String(), err)
	}
}

func TestRemoteAdminForbidden(t *testing.T) {
	s := NewServer(nil, validator(t), Config{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	s.Handler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
}

type stuckBackend struct{}

func (stuckBackend) Time() uint64                           { return 0 }
func (stuckBackend) HasPlayer(string) bool                  { return true }
func (stuckBackend) RoomData(string) (world.RoomData, bool) { return world.RoomData{}, false }
func (stuckBackend) Script(string) (string, error)          { return "", nil }
func (stuckBackend) SetScript(string, string) <-chan error  { return make(chan error) }
func (stuckBackend) Register(string, string) <-chan error   { return make(chan error) }

func TestQueuedOperationTimesOut(t *testing.T) {
	s := NewServer(stuckBackend{}, validator(t), Config{ApplyTimeout: 20 * time.Millisecond}, nil)
	resp := s.Handle(context.Background(), []byte(`{"type":"setScript","player":"alice","script":""}`))
	if resp.Code != protocol.ErrTimeout {
		t.Fatalf("expected timeout, got %+v", resp)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:80":   true,
		"[::1]:443":      true,
		"10.0.0.2:80":    false,
		"not-an-address": false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v", addr, got)
		}
	}
}

func TestCrossOriginUpgradeRejected(t *testing.T) {
	e := runningEngine(t)
	u := adminURL(t, e)

	conn, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		_ = conn.Close()
		t.Fatalf("cross-origin upgrade accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v %v", resp, err)
	}
	if e.HasPlayer("mallory") {
		t.Fatalf("player registered")
	}

	conn, _, err = websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://127.0.0.1:3000"}})
	if err != nil {
		t.Fatalf("loopback origin: %v", err)
	}
	_ = conn.Close()
}

func TestCheckOrigin(t *testing.T) {
	for origin, want := range map[string]bool{
		"":                      true,
		"http://localhost:8080": true,
		"http://127.0.0.1":      true,
		"http://[::1]:9000":     true,
		"https://evil.example":  false,
		"http://10.0.0.2":       false,
		"null":                  false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := NewServer(nil, nil, Config{}, nil).checkOrigin(req); got != want {
			t.Fatalf("%q: got %v", origin, got)
		}
		if !NewServer(nil, nil, Config{AllowRemote: true}, nil).checkOrigin(req) {
			t.Fatalf("%q rejected with remote admin allowed", origin)
		}
	}
}
