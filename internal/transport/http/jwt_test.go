package http

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/proto"
)

func makeJWT(secret, aud, iss, sub, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}
	if role != "" {
		claims["role"] = role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestWebSocketJWTSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.JWTRequired = true
	env := startTestServer(t, cfg)

	token, err := makeJWT(testSecret, "test", "test", "user1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := env.dial(t, ctx)
	ready := hello(t, ctx, conn, token)
	if ready.UserID != "user1" || len(ready.Rooms) != 3 {
		t.Fatalf("unexpected ready: %+v", ready)
	}

	send(t, ctx, conn, proto.InboundTypeSubscribe, "D1")
	waitForRooms(t, env.dispatcher.Hub(), 4)
}

func TestWebSocketJWTInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.JWTRequired = true
	env := startTestServer(t, cfg)

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := env.dial(t, ctx)

	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: "invalid"})
	if out := read(t, ctx, conn); out.Type != "error" || out.Error == nil || out.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized error, got %+v", out)
	}

	expired, err := makeJWT(testSecret, "test", "test", "user1", "", -time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}
	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: expired})
	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeUnauthorized {
		t.Fatalf("expected expired token to be rejected, got %+v", out)
	}
}

func TestWebSocketJWTRequiredBeforeCommands(t *testing.T) {
	cfg := testConfig()
	cfg.JWTRequired = true
	env := startTestServer(t, cfg)

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeSubscribe, "D1")
	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", out)
	}

	send(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{})
	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeUnauthorized {
		t.Fatalf("expected hello without token to be rejected, got %+v", out)
	}
}
