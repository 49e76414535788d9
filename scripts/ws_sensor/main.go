package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/log"
	"github.com/agriai/agriai-server/internal/proto"
)

// ws_sensor subscribes to a device room, pushes a few moisture readings and
// prints every frame the server sends back. Readings below the alert
// threshold should be followed by a sensorAlert.
func main() {
	logger := log.New("info")
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("ws_sensor failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT to send with hello")
	device := flag.String("device", "device-1", "device id to subscribe and report for")
	count := flag.Int("count", 3, "number of readings to push")
	start := flag.Float64("moisture", 30, "first moisture reading, decremented by 7 per reading")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeHello, proto.HelloData{Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeSubscribe, proto.DeviceData{DeviceID: *device}); err != nil {
		return err
	}

	go func() {
		moisture := *start
		for i := 0; i < *count; i++ {
			reading := map[string]any{
				"deviceId":  *device,
				"moisture":  moisture,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}
			if err := send(proto.InboundTypeUpdateSensor, reading); err != nil {
				logger.Warn().Err(err).Msg("push reading")
				return
			}
			moisture -= 7
			time.Sleep(200 * time.Millisecond)
		}
	}()

	for {
		var out struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		entry := logger.Info().Str("type", out.Type)
		if out.Event != "" {
			entry = entry.Str("event", out.Event)
		}
		if out.Error != nil {
			entry = entry.Str("code", out.Error.Code).Str("msg", out.Error.Msg)
		}
		if len(out.Data) > 0 {
			entry = entry.RawJSON("data", out.Data)
		}
		entry.Msg("received")
	}
}
