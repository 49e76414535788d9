package core

import "errors"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSubscribe joins the device room named by Device.
	CommandSubscribe CommandKind = iota
	// CommandUnsubscribe leaves the device room named by Device.
	CommandUnsubscribe
	// CommandUpdateSensor relays Reading to its device room.
	CommandUpdateSensor
)

// Command represents an action requested by a client.
type Command struct {
	Kind    CommandKind
	Device  string
	Reading SensorReading
}

// Apply executes a client command on behalf of connection id.
func (d *Dispatcher) Apply(id string, cmd Command) *CoreError {
	switch cmd.Kind {
	case CommandSubscribe:
		if cmd.Device == "" {
			return NewError(ErrCodeBadRequest, "deviceId is required")
		}
		joined, err := d.hub.Subscribe(id, cmd.Device)
		if errors.Is(err, ErrReservedRoom) {
			d.log.Warn().Str("client_id", id).Str("room", cmd.Device).Msg("subscribe to reserved room refused")
			return NewError(ErrCodeBadRequest, "room is reserved")
		}
		if joined {
			d.log.Info().Str("client_id", id).Str("device_id", cmd.Device).Msg("subscribed to device")
		}
	case CommandUnsubscribe:
		if cmd.Device == "" {
			return NewError(ErrCodeBadRequest, "deviceId is required")
		}
		if IsReservedRoom(cmd.Device) {
			return NewError(ErrCodeBadRequest, "room is reserved")
		}
		if d.hub.Leave(id, cmd.Device) {
			d.log.Info().Str("client_id", id).Str("device_id", cmd.Device).Msg("unsubscribed from device")
		}
	case CommandUpdateSensor:
		if cmd.Reading.DeviceID == "" {
			return NewError(ErrCodeBadRequest, "deviceId is required")
		}
		d.HandleSensorUpdate(cmd.Reading)
	default:
		return NewError(ErrCodeInvalidMessage, "unknown command")
	}
	return nil
}
