package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agriai/agriai-server/internal/store"
	"github.com/agriai/agriai-server/internal/utils"
)

// Common errors for order operations.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidOrder  = errors.New("invalid order")
	ErrInvalidStatus = errors.New("invalid order status")
	ErrNotOwner      = errors.New("order belongs to another user")
	ErrCannotCancel  = errors.New("cannot cancel an order that has already been shipped or delivered")
)

// DefaultShippingPrice applies when the client does not choose a shipping method.
const DefaultShippingPrice = 60

// Notifier receives order notifications after a successful write.
// Implementations must not fail or block the caller.
type Notifier interface {
	PublishNewOrder(order store.Order)
	PublishOrderStatusChanged(orderID string, status store.OrderStatus, userID string)
	PublishUserOrderUpdate(orderID, userID string, fields map[string]any)
}

// CreateInput is what a customer submits when placing an order.
type CreateInput struct {
	Items           []store.OrderItem
	ShippingAddress store.ShippingAddress
	PaymentMethod   string
	ShippingPrice   *float64
	Total           float64
}

// Service provides order business logic.
type Service struct {
	store  store.OrderStore
	notify Notifier
	log    *zerolog.Logger
	now    func() time.Time
}

// New creates a new order service.
func New(st store.OrderStore, notify Notifier, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:  st,
		notify: notify,
		log:    logger,
		now:    time.Now,
	}
}

// Create places an order for userID and announces it to admins.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*store.Order, error) {
	if len(in.Items) == 0 || in.Total <= 0 {
		return nil, fmt.Errorf("%w: items and total amount are required", ErrInvalidOrder)
	}
	addr := in.ShippingAddress
	for _, field := range []string{addr.Name, addr.Phone, addr.Address, addr.City, addr.State, addr.Pincode} {
		if strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("%w: shipping address must include name, phone, address, city, state, and pincode", ErrInvalidOrder)
		}
	}

	order := &store.Order{
		OrderNumber:     utils.NewOrderNumber(s.now()),
		UserID:          userID,
		Items:           in.Items,
		ShippingAddress: addr,
		PaymentMethod:   in.PaymentMethod,
		ShippingPrice:   DefaultShippingPrice,
		TotalPrice:      in.Total,
		Status:          store.OrderStatusPending,
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = "cod"
	}
	if in.ShippingPrice != nil {
		order.ShippingPrice = *in.ShippingPrice
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	s.log.Info().Str("order_id", order.ID).Str("order_number", order.OrderNumber).Msg("order created")
	s.notify.PublishNewOrder(*order)
	return order, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*store.Order, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// ListForUser returns the orders placed by userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*store.Order, error) {
	orders, err := s.store.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to status. The boolean reports whether the
// status changed; an unchanged status writes nothing and notifies nobody.
func (s *Service) UpdateStatus(ctx context.Context, id string, status store.OrderStatus) (*store.Order, bool, error) {
	if !status.Valid() {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if order.Status == status {
		return order, false, nil
	}

	updated, err := s.apply(ctx, order, status)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// Cancel cancels an order on behalf of its owner.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*store.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}
	if order.Status == store.OrderStatusShipped || order.Status == store.OrderStatusDelivered {
		return nil, ErrCannotCancel
	}
	if order.Status == store.OrderStatusCancelled {
		return order, nil
	}
	return s.apply(ctx, order, store.OrderStatusCancelled)
}

func (s *Service) apply(ctx context.Context, order *store.Order, status store.OrderStatus) (*store.Order, error) {
	var deliveredAt *time.Time
	if status == store.OrderStatusDelivered {
		now := s.now().UTC()
		deliveredAt = &now
	}

	updated, err := s.store.UpdateOrderStatus(ctx, order.ID, status, deliveredAt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.log.Info().
		Str("order_id", updated.ID).
		Str("from", string(order.Status)).
		Str("to", string(status)).
		Msg("order status changed")

	s.notify.PublishOrderStatusChanged(updated.ID, updated.Status, updated.UserID)
	fields := map[string]any{
		"status":      updated.Status,
		"orderNumber": updated.OrderNumber,
		"updatedAt":   updated.UpdatedAt,
	}
	if updated.DeliveredAt != nil {
		fields["deliveredAt"] = *updated.DeliveredAt
	}
	s.notify.PublishUserOrderUpdate(updated.ID, updated.UserID, fields)
	return updated, nil
}
