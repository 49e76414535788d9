package http

import (
	"encoding/json"
	"strings"

	"github.com/agriai/agriai-server/internal/core"
	"github.com/agriai/agriai-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeSubscribe, proto.InboundTypeUnsubscribe:
		var device proto.DeviceData
		if err := json.Unmarshal(inbound.Data, &device); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid device payload"}
		}
		if err := proto.Validate(device); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "deviceId is required"}
		}
		kind := core.CommandSubscribe
		if inbound.Type == proto.InboundTypeUnsubscribe {
			kind = core.CommandUnsubscribe
		}
		return &core.Command{Kind: kind, Device: device.DeviceID}, nil
	case proto.InboundTypeUpdateSensor:
		var data proto.SensorData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid sensor payload"}
		}
		data.DeviceID = strings.TrimSpace(data.DeviceID)
		if err := proto.Validate(data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "deviceId is required"}
		}
		reading := core.SensorReading{
			DeviceID: data.DeviceID,
			Payload:  inbound.Data,
		}
		if m, ok := data.MoistureValue(); ok {
			reading.Moisture = &m
		}
		return &core.Command{Kind: core.CommandUpdateSensor, Reading: reading}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func outboundFromEvent(event core.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: event.Kind().String(),
		Data:  event,
	}
}

func outboundError(code, msg string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}
