package core

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/agriai/agriai-server/internal/store"
)

// DefaultEventQueue is the dispatch queue length used when none is configured.
const DefaultEventQueue = 256

// LowMoistureThreshold is the reading below which a sensorAlert is raised.
const LowMoistureThreshold = 20.0

// Dispatcher turns domain events into room emits. Producers enqueue and return
// immediately; a single drain goroutine started by Run emits in publish order,
// which keeps per-room ordering for every member.
type Dispatcher struct {
	hub     *Hub
	queue   chan Event
	running atomic.Bool
	dropped atomic.Uint64
	log     *zerolog.Logger
}

// NewDispatcher creates a dispatcher that emits through hub.
func NewDispatcher(hub *Hub, queueSize int, logger *zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultEventQueue
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		hub:   hub,
		queue: make(chan Event, queueSize),
		log:   logger,
	}
}

// Hub exposes the registry the dispatcher emits through. A nil dispatcher
// has no hub.
func (d *Dispatcher) Hub() *Hub {
	if d == nil {
		return nil
	}
	return d.hub
}

// Run drains the queue until ctx is cancelled. Events still queued at that
// point are discarded.
func (d *Dispatcher) Run(ctx context.Context) {
	d.running.Store(true)
	defer d.running.Store(false)

	d.log.Info().Int("queue_size", cap(d.queue)).Msg("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("dispatcher stopped")
			return
		case ev := <-d.queue:
			d.dispatch(ev)
		}
	}
}

// Running reports whether Run is draining the queue.
func (d *Dispatcher) Running() bool {
	return d != nil && d.running.Load()
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) dispatch(ev Event) {
	rooms := Targets(ev)
	if len(rooms) == 0 {
		return
	}
	var n int
	switch ev.(type) {
	case CallRequested, CallAccepted, CallEnded:
		// Call rooms are user ids and only the identified party may listen.
		n = d.hub.EmitUsers(rooms, ev)
	default:
		n = d.hub.EmitRooms(rooms, ev)
	}
	d.log.Debug().
		Str("event", ev.Kind().String()).
		Strs("rooms", rooms).
		Int("delivered", n).
		Msg("event emitted")
}

// publish never fails: an unstarted dispatcher or a full queue is logged
// and the event is lost.
func (d *Dispatcher) publish(ev Event) {
	if d == nil {
		zlog.Warn().Str("event", ev.Kind().String()).Msg("realtime dispatcher not initialized, event skipped")
		return
	}
	if !d.running.Load() {
		d.log.Warn().Str("event", ev.Kind().String()).Msg("realtime dispatcher not running, event skipped")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
		d.log.Warn().Str("event", ev.Kind().String()).Msg("dispatch queue full, event dropped")
	}
}

// PublishNewOrder announces an order to the admin room.
func (d *Dispatcher) PublishNewOrder(order store.Order) {
	d.publish(NewOrder{Order: order})
}

// PublishOrderStatusChanged notifies admins, and the owner when userID is set.
func (d *Dispatcher) PublishOrderStatusChanged(orderID string, status store.OrderStatus, userID string) {
	d.publish(OrderUpdated{OrderID: orderID, Status: status, UserID: userID})
}

// PublishUserOrderUpdate notifies the owner's order room. Without a user id
// there is no room to address and the call is a no-op.
func (d *Dispatcher) PublishUserOrderUpdate(orderID, userID string, fields map[string]any) {
	if userID == "" {
		if d != nil {
			d.log.Debug().Str("order_id", orderID).Msg("user order update without user id skipped")
		}
		return
	}
	d.publish(UserOrderUpdated{OrderID: orderID, UserID: userID, Fields: fields})
}

// PublishCallStatusChanged emits the call-signaling event for a transition of
// appt to status. A non-empty session token is reflected in the snapshot.
// Transitions without a notification, or without the counterpart needed to
// address it, publish nothing.
func (d *Dispatcher) PublishCallStatusChanged(appt store.Appointment, status store.CallStatus, sessionToken *string) {
	appt.CallStatus = status
	if sessionToken != nil && *sessionToken != "" {
		appt.SessionToken = sessionToken
	}
	ev, ok := CallEventFor(appt)
	if !ok {
		if d != nil {
			d.log.Debug().
				Str("appointment_id", appt.ID).
				Str("call_status", string(status)).
				Msg("call transition has no notification")
		}
		return
	}
	d.publish(ev)
}

// HandleSensorUpdate relays a reading to its device room and, when moisture is
// below LowMoistureThreshold, follows it with a sensorAlert.
func (d *Dispatcher) HandleSensorUpdate(r SensorReading) {
	if r.DeviceID == "" {
		return
	}
	d.publish(DeviceData{SensorReading: r})
	if r.Moisture != nil && *r.Moisture < LowMoistureThreshold {
		d.publish(SensorAlert{
			Type:    "low_moisture",
			Message: "Low soil moisture detected!",
			Level:   "warning",
			Data:    r,
		})
	}
}

// Targets resolves the rooms an event is addressed to using only fields of
// the event itself.
func Targets(ev Event) []string {
	switch e := ev.(type) {
	case NewOrder:
		return []string{AdminRoom}
	case OrderUpdated:
		if e.UserID != "" {
			return []string{AdminRoom, UserOrdersRoom(e.UserID)}
		}
		return []string{AdminRoom}
	case UserOrderUpdated:
		return []string{UserOrdersRoom(e.UserID)}
	case DeviceData:
		return []string{e.DeviceID}
	case SensorAlert:
		return []string{e.Data.DeviceID}
	case CallRequested:
		return []string{e.ExpertUserID}
	case CallAccepted:
		if e.FarmerUserID == nil || *e.FarmerUserID == "" {
			return nil
		}
		return []string{*e.FarmerUserID}
	case CallEnded:
		if e.FarmerUserID == nil || *e.FarmerUserID == "" {
			return nil
		}
		return []string{e.ExpertUserID, *e.FarmerUserID}
	default:
		return nil
	}
}
