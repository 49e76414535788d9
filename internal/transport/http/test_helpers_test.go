package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/auth"
	"github.com/agriai/agriai-server/internal/config"
	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/proto"
	"github.com/agriai/agriai-server/internal/service/appointments"
	"github.com/agriai/agriai-server/internal/service/orders"
	"github.com/agriai/agriai-server/internal/store/sqlite"
)

const testSecret = "testsecret"

type testEnv struct {
	ts         *httptest.Server
	dispatcher *core.Dispatcher
	auth       *auth.Service
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = testSecret
	cfg.JWTIssuer = "test"
	cfg.JWTAudience = "test"
	return cfg
}

// startTestServer wires an in-memory store, a running dispatcher and the router.
func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	disabledLogger := zerolog.New(nil)

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := core.NewHub(&disabledLogger)
	dispatcher := core.NewDispatcher(hub, cfg.EventQueueSize, &disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go dispatcher.Run(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for !dispatcher.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("dispatcher did not start")
		}
		time.Sleep(time.Millisecond)
	}

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	server := NewServer(Services{
		Dispatcher:   dispatcher,
		Auth:         authService,
		Orders:       orders.New(st, dispatcher, &disabledLogger),
		Appointments: appointments.New(st, dispatcher, nil, &disabledLogger),
	}, &cfg, &disabledLogger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, dispatcher: dispatcher, auth: authService}
}

func (e *testEnv) token(t *testing.T, userID, role string) string {
	t.Helper()

	token, err := e.auth.IssueToken(userID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// outbound mirrors proto.Outbound with raw data for decoding per event.
type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) outbound {
	t.Helper()

	var out outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

// hello identifies the connection and waits for the ready reply.
func hello(t *testing.T, ctx context.Context, conn *websocket.Conn, token string) proto.ReadyData {
	t.Helper()

	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: token, Protocol: proto.ProtocolVersion})
	out := read(t, ctx, conn)
	if out.Type != proto.OutboundTypeReady {
		t.Fatalf("expected ready, got %+v", out)
	}
	var ready proto.ReadyData
	if err := json.Unmarshal(out.Data, &ready); err != nil {
		t.Fatalf("unmarshal ready: %v", err)
	}
	return ready
}

// waitForRooms polls until the hub reports the expected number of rooms.
func waitForRooms(t *testing.T, hub *core.Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, rooms := hub.Stats(); rooms == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	_, rooms := hub.Stats()
	t.Fatalf("expected %d rooms, have %d", want, rooms)
}
