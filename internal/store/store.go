package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// OrderStatus defines the order lifecycle status.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// OrderItem is a line of an order.
type OrderItem struct {
	ProductID string  `json:"productId,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Order represents a persisted order.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	UserID          string          `json:"userId"`
	Items           []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingPrice   float64         `json:"shippingPrice"`
	TotalPrice      float64         `json:"totalPrice"`
	Status          OrderStatus     `json:"status"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// AppointmentStatus defines the scheduling status of an appointment.
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// CallStatus defines where an appointment is in the call handshake.
type CallStatus string

const (
	CallStatusNotRequested    CallStatus = "not_requested"
	CallStatusFarmerRequested CallStatus = "farmer_requested"
	CallStatusExpertAccepted  CallStatus = "expert_accepted"
	CallStatusInProgress      CallStatus = "call_in_progress"
	CallStatusEnded           CallStatus = "call_ended"
)

// Appointment represents a persisted farmer/expert appointment.
// The call session is derived from CallStatus and SessionToken.
type Appointment struct {
	ID            string            `json:"id"`
	FarmerName    string            `json:"farmerName"`
	FarmerUserID  *string           `json:"farmerUserId,omitempty"`
	ExpertUserID  string            `json:"expertUserId"`
	Crops         []string          `json:"crops"`
	Issue         string            `json:"issue"`
	Location      string            `json:"location,omitempty"`
	Languages     []string          `json:"languages"`
	PreferredTime *string           `json:"preferredTime,omitempty"`
	Status        AppointmentStatus `json:"status"`
	CallStatus    CallStatus        `json:"callStatus"`
	SessionToken  *string           `json:"roomName,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// OrderStore handles order persistence.
type OrderStore interface {
	// CreateOrder persists a new order. ID and timestamps are set by the store.
	CreateOrder(ctx context.Context, order *Order) error

	// GetOrder retrieves an order by ID.
	GetOrder(ctx context.Context, id string) (*Order, error)

	// UpdateOrderStatus sets the status (and deliveredAt when given) and returns the updated order.
	UpdateOrderStatus(ctx context.Context, id string, status OrderStatus, deliveredAt *time.Time) (*Order, error)

	// ListOrdersByUser lists a user's orders, newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]*Order, error)
}

// AppointmentStore handles appointment persistence.
type AppointmentStore interface {
	// CreateAppointment persists a new appointment with call status not_requested.
	CreateAppointment(ctx context.Context, appt *Appointment) error

	// GetAppointment retrieves an appointment by ID.
	GetAppointment(ctx context.Context, id string) (*Appointment, error)

	// ListAppointmentsForExpert lists an expert's appointments, newest first.
	ListAppointmentsForExpert(ctx context.Context, expertUserID string) ([]*Appointment, error)

	// UpdatePreferredTime sets the preferred time and returns the updated appointment.
	UpdatePreferredTime(ctx context.Context, id, preferredTime string) (*Appointment, error)

	// UpdateCallStatus sets callStatus, and the session token when non-nil, in one write.
	UpdateCallStatus(ctx context.Context, id string, status CallStatus, sessionToken *string) (*Appointment, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	OrderStore
	AppointmentStore

	// Close closes the underlying database connection.
	Close() error
}
