package http

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/samber/lo"

	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig())

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketSensorRelayAndAlert(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watcher := env.dial(t, ctx)
	device := env.dial(t, ctx)

	send(t, ctx, watcher, proto.InboundTypeSubscribe, proto.DeviceData{DeviceID: "D1"})
	waitForRooms(t, env.dispatcher.Hub(), 1)

	send(t, ctx, device, proto.InboundTypeUpdateSensor, map[string]any{
		"deviceId":    "D1",
		"moisture":    15,
		"temperature": 28.5,
		"timestamp":   "2026-10-18T09:00:00Z",
	})

	first := read(t, ctx, watcher)
	if first.Type != proto.OutboundTypeEvent || first.Event != "deviceData" {
		t.Fatalf("expected deviceData first, got %+v", first)
	}
	var reading core.SensorReading
	if err := json.Unmarshal(first.Data, &reading); err != nil {
		t.Fatalf("unmarshal reading: %v", err)
	}
	if reading.DeviceID != "D1" || lo.FromPtr(reading.Moisture) != 15 {
		t.Fatalf("unexpected reading: %+v", reading)
	}

	second := read(t, ctx, watcher)
	if second.Event != "sensorAlert" {
		t.Fatalf("expected sensorAlert second, got %+v", second)
	}
	var alert core.SensorAlert
	if err := json.Unmarshal(second.Data, &alert); err != nil {
		t.Fatalf("unmarshal alert: %v", err)
	}
	if alert.Level != "warning" || alert.Type != "low_moisture" || alert.Data.DeviceID != "D1" {
		t.Fatalf("unexpected alert: %+v", alert)
	}

	send(t, ctx, device, proto.InboundTypeUpdateSensor, map[string]any{"deviceId": "D1", "moisture": 25})
	next := read(t, ctx, watcher)
	if next.Event != "deviceData" {
		t.Fatalf("expected deviceData, got %+v", next)
	}
}

func TestWebSocketSubscribeAcceptsBareString(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeSubscribe, "D7")
	waitForRooms(t, env.dispatcher.Hub(), 1)
	if members := env.dispatcher.Hub().Members("D7"); len(members) != 1 {
		t.Fatalf("expected one member in D7, got %v", members)
	}

	send(t, ctx, conn, proto.InboundTypeUnsubscribe, "D7")
	waitForRooms(t, env.dispatcher.Hub(), 0)
}

func TestWebSocketProtocolErrors(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)

	send(t, ctx, conn, "dance", map[string]string{})
	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeInvalidMessage {
		t.Fatalf("expected invalid_message, got %+v", out)
	}

	send(t, ctx, conn, proto.InboundTypeSubscribe, map[string]string{"deviceId": "  "})
	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", out)
	}

	send(t, ctx, conn, proto.InboundTypeUpdateSensor, map[string]any{"moisture": 10})
	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected bad_request for missing deviceId, got %+v", out)
	}
}

func TestWebSocketHelloJoinsPersonalRooms(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	admin := env.dial(t, ctx)
	ready := hello(t, ctx, admin, env.token(t, "A1", "admin"))
	if ready.UserID != "A1" {
		t.Fatalf("unexpected ready: %+v", ready)
	}
	want := []string{"A1", core.AdminRoom, "user_orders_A1"}
	if !slices.Equal(want, ready.Rooms) {
		t.Fatalf("expected rooms %v, got %v", want, ready.Rooms)
	}

	farmer := env.dial(t, ctx)
	ready = hello(t, ctx, farmer, env.token(t, "F1", "farmer"))
	if lo.Contains(ready.Rooms, core.AdminRoom) {
		t.Fatalf("non-admin placed in admin room: %v", ready.Rooms)
	}

	send(t, ctx, farmer, proto.InboundTypeHello, proto.HelloData{Token: env.token(t, "F2", "")})
	if out := read(t, ctx, farmer); out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
		t.Fatalf("expected second hello to be rejected, got %+v", out)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	env := startTestServer(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, proto.InboundTypeSubscribe, "D1")
	send(t, ctx, conn, proto.InboundTypeSubscribe, "D2")
	send(t, ctx, conn, proto.InboundTypeSubscribe, "D3")

	if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited, got %+v", out)
	}
	if members := env.dispatcher.Hub().Members("D3"); members != nil {
		t.Fatalf("limited message was applied: %v", members)
	}
}

func TestWebSocketDisconnectLeavesRooms(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	hello(t, ctx, conn, env.token(t, "U1", ""))
	send(t, ctx, conn, proto.InboundTypeSubscribe, "D1")
	waitForRooms(t, env.dispatcher.Hub(), 3)

	conn.Close(websocket.StatusNormalClosure, "bye")
	waitForRooms(t, env.dispatcher.Hub(), 0)

	deadline := time.Now().Add(2 * time.Second)
	for {
		clients, _ := env.dispatcher.Hub().Stats()
		if clients == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("connection still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketSensorPayloadRelayedAsReceived(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watcher := env.dial(t, ctx)
	device := env.dial(t, ctx)
	send(t, ctx, watcher, proto.InboundTypeSubscribe, "D1")
	waitForRooms(t, env.dispatcher.Hub(), 1)

	payload := `{"deviceId":"D1","moisture":-3,"timestamp":1760000000000,"humidity":40}`
	send(t, ctx, device, proto.InboundTypeUpdateSensor, json.RawMessage(payload))

	data := read(t, ctx, watcher)
	if data.Event != "deviceData" {
		t.Fatalf("expected deviceData, got %+v", data)
	}
	var got, want map[string]any
	if err := json.Unmarshal(data.Data, &got); err != nil {
		t.Fatalf("unmarshal relayed payload: %v", err)
	}
	if err := json.Unmarshal([]byte(payload), &want); err != nil {
		t.Fatalf("unmarshal sent payload: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("payload changed in transit: got %v want %v", got, want)
	}

	alert := read(t, ctx, watcher)
	if alert.Event != "sensorAlert" {
		t.Fatalf("expected sensorAlert for negative moisture, got %+v", alert)
	}
}

func TestWebSocketSubscribeRefusesReservedRooms(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx)
	for _, room := range []string{core.AdminRoom, core.UserOrdersRoom("U1")} {
		send(t, ctx, conn, proto.InboundTypeSubscribe, room)
		if out := read(t, ctx, conn); out.Error == nil || out.Error.Code != core.ErrCodeBadRequest {
			t.Fatalf("expected bad_request subscribing to %s, got %+v", room, out)
		}
	}
	if _, rooms := env.dispatcher.Hub().Stats(); rooms != 0 {
		t.Fatalf("reserved subscribe created %d rooms", rooms)
	}
}
