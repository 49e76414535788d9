package core

import (
	"encoding/json"
	"strings"

	"github.com/agriai/agriai-server/internal/store"
)

// EventKind names a notification the core emits to clients.
type EventKind int

const (
	// EventDeviceData relays a raw sensor reading to a device room.
	EventDeviceData EventKind = iota
	// EventSensorAlert flags a reading that crossed an alert threshold.
	EventSensorAlert
	// EventOrderUpdated tells admins (and the owner) that an order changed status.
	EventOrderUpdated
	// EventUserOrderUpdated is the owner-facing variant of an order change.
	EventUserOrderUpdated
	// EventNewOrder announces a freshly placed order to admins.
	EventNewOrder

	// EventCallRequested asks the expert to pick up a farmer's call.
	EventCallRequested
	// EventCallAccepted tells the farmer the expert accepted.
	EventCallAccepted
	// EventCallEnded tells both parties the call is over.
	EventCallEnded
)

var eventNames = [...]string{
	EventDeviceData:       "deviceData",
	EventSensorAlert:      "sensorAlert",
	EventOrderUpdated:     "order_updated",
	EventUserOrderUpdated: "user_order_updated",
	EventNewOrder:         "new_order",
	EventCallRequested:    "call_requested",
	EventCallAccepted:     "call_accepted",
	EventCallEnded:        "call_ended",
}

// String returns the wire name clients subscribe to.
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is a closed set of typed notifications. Only types in this package
// implement it, so Targets can switch over every variant.
type Event interface {
	Kind() EventKind
	event()
}

// Well-known room names.
const (
	AdminRoom            = "admin_room"
	userOrdersRoomPrefix = "user_orders_"
)

// UserOrdersRoom is the personal order room of a user.
func UserOrdersRoom(userID string) string {
	return userOrdersRoomPrefix + userID
}

// IsReservedRoom reports whether a room name belongs to the server-assigned
// namespace that clients may not subscribe to.
func IsReservedRoom(name string) bool {
	return name == AdminRoom || strings.HasPrefix(name, userOrdersRoomPrefix)
}

// SensorReading is one inbound measurement from a field device. Payload is
// the reading exactly as the device sent it and is what clients receive;
// DeviceID and Moisture are the parts the server inspects.
type SensorReading struct {
	DeviceID string          `json:"deviceId"`
	Moisture *float64        `json:"moisture,omitempty"`
	Payload  json.RawMessage `json:"-"`
}

// MarshalJSON relays Payload untouched when present.
func (r SensorReading) MarshalJSON() ([]byte, error) {
	if len(r.Payload) > 0 {
		return r.Payload, nil
	}
	type plain SensorReading
	return json.Marshal(plain(r))
}

// DeviceData relays a reading unchanged.
type DeviceData struct {
	SensorReading
}

// SensorAlert classifies a reading that needs attention.
type SensorAlert struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	Level   string        `json:"level"`
	Data    SensorReading `json:"data"`
}

// NewOrder carries the full order snapshot.
type NewOrder struct {
	store.Order
}

// OrderUpdated is the admin-facing status change notification.
type OrderUpdated struct {
	OrderID string            `json:"orderId"`
	Status  store.OrderStatus `json:"status"`
	UserID  string            `json:"userId,omitempty"`
}

// UserOrderUpdated is the owner-facing change notification. Fields are
// merged into the top-level JSON object next to orderId and userId.
type UserOrderUpdated struct {
	OrderID string
	UserID  string
	Fields  map[string]any
}

// MarshalJSON flattens Fields into the payload.
func (e UserOrderUpdated) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["orderId"] = e.OrderID
	out["userId"] = e.UserID
	return json.Marshal(out)
}

// CallRequested carries the appointment snapshot to the expert.
type CallRequested struct {
	store.Appointment
}

// CallAccepted carries the appointment snapshot to the farmer.
type CallAccepted struct {
	store.Appointment
}

// CallEnded carries the appointment snapshot to both parties.
type CallEnded struct {
	store.Appointment
}

func (DeviceData) Kind() EventKind       { return EventDeviceData }
func (SensorAlert) Kind() EventKind      { return EventSensorAlert }
func (NewOrder) Kind() EventKind         { return EventNewOrder }
func (OrderUpdated) Kind() EventKind     { return EventOrderUpdated }
func (UserOrderUpdated) Kind() EventKind { return EventUserOrderUpdated }
func (CallRequested) Kind() EventKind    { return EventCallRequested }
func (CallAccepted) Kind() EventKind     { return EventCallAccepted }
func (CallEnded) Kind() EventKind        { return EventCallEnded }

func (DeviceData) event()       {}
func (SensorAlert) event()      {}
func (NewOrder) event()         {}
func (OrderUpdated) event()     {}
func (UserOrderUpdated) event() {}
func (CallRequested) event()    {}
func (CallAccepted) event()     {}
func (CallEnded) event()        {}
