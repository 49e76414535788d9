package proto

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello        = "hello"
	InboundTypeSubscribe    = "subscribe"
	InboundTypeUnsubscribe  = "unsubscribe"
	InboundTypeUpdateSensor = "updateSensor"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
	OutboundTypeReady = "ready"
)

// HelloData is sent by the client to introduce itself.
type HelloData struct {
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// DeviceData names the device room for subscribe and unsubscribe. Clients may
// also send the device id as a bare JSON string.
type DeviceData struct {
	DeviceID string `json:"deviceId" validate:"required"`
}

// UnmarshalJSON accepts either {"deviceId": "..."} or "...".
func (d *DeviceData) UnmarshalJSON(b []byte) error {
	var bare string
	if err := json.Unmarshal(b, &bare); err == nil {
		d.DeviceID = strings.TrimSpace(bare)
		return nil
	}
	type alias DeviceData
	var obj alias
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	obj.DeviceID = strings.TrimSpace(obj.DeviceID)
	*d = DeviceData(obj)
	return nil
}

// SensorData is the part of a device reading the server looks at. The rest of
// the payload is relayed to the device room as received.
type SensorData struct {
	DeviceID string `json:"deviceId" validate:"required"`
	Moisture any    `json:"moisture"`
}

// MoistureValue reads moisture as a number. Numeric strings are accepted;
// anything else reports false.
func (s SensorData) MoistureValue() (float64, bool) {
	switch v := s.Moisture.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// ReadyData acknowledges a hello with the rooms the server assigned.
type ReadyData struct {
	ClientID string   `json:"clientId"`
	UserID   string   `json:"userId,omitempty"`
	Rooms    []string `json:"rooms"`
	Protocol int      `json:"protocol"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the validate tags of an inbound payload.
func Validate(v any) error {
	return validate.Struct(v)
}
