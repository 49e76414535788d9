package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/proto"
)

func TestServerHandlerUpgradesAndRoutesREST(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, "dance", map[string]string{})
	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeInvalidMessage {
		t.Fatalf("expected invalid_message over the server handler, got %+v", out)
	}

	send(t, ctx, conn, proto.InboundTypeSubscribe, "D1")
	waitForRooms(t, env.dispatcher.Hub(), 1)

	resp, err := stdhttp.Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("health through the gin router returned %d", resp.StatusCode)
	}
}

func TestServerWithoutDispatcher(t *testing.T) {
	disabled := zerolog.Nop()
	cfg := testConfig()
	ts := httptest.NewServer(NewHandler(Services{}, &cfg, &disabled))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without a dispatcher")
	}
	if resp == nil || resp.StatusCode != stdhttp.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	NewAPIHandlers(nil, &disabled).Stats(c)
	if rec.Code != stdhttp.StatusOK || !strings.Contains(rec.Body.String(), `"connections":0`) {
		t.Fatalf("unexpected stats without dispatcher: %d %s", rec.Code, rec.Body.String())
	}
}
