package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/agriai/agriai-server/internal/service/orders"
	"github.com/agriai/agriai-server/internal/store"
)

// OrderHandlers provides HTTP handlers for order endpoints.
type OrderHandlers struct {
	service *orders.Service
	log     *zerolog.Logger
}

// NewOrderHandlers creates a new order handlers instance.
func NewOrderHandlers(svc *orders.Service, logger *zerolog.Logger) *OrderHandlers {
	return &OrderHandlers{
		service: svc,
		log:     logger,
	}
}

// OrderItemRequest is one line of a new order.
type OrderItemRequest struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Price     float64 `json:"price" binding:"gte=0"`
	Image     string  `json:"image"`
}

// CreateOrderRequest accepts either shippingInfo or customerInfo, and any of
// totalAmount, total or subTotal, in that order of preference.
type CreateOrderRequest struct {
	Items          []OrderItemRequest     `json:"items" binding:"required,min=1,dive"`
	ShippingInfo   *store.ShippingAddress `json:"shippingInfo"`
	CustomerInfo   *store.ShippingAddress `json:"customerInfo"`
	PaymentMethod  string                 `json:"paymentMethod"`
	ShippingMethod *struct {
		Price float64 `json:"price"`
	} `json:"shippingMethod"`
	TotalAmount float64 `json:"totalAmount"`
	Total       float64 `json:"total"`
	SubTotal    float64 `json:"subTotal"`
}

// UpdateOrderStatusRequest represents the request body for a status change.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderStatusResponse wraps an order after a status request.
type OrderStatusResponse struct {
	Changed bool         `json:"changed"`
	Order   *store.Order `json:"order"`
}

// CreateOrder places an order for the caller.
// POST /api/orders
func (h *OrderHandlers) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create order request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	shipping := req.ShippingInfo
	if req.CustomerInfo != nil {
		shipping = req.CustomerInfo
	}
	if shipping == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "shipping information is required"})
		return
	}

	in := orders.CreateInput{
		Items: lo.Map(req.Items, func(it OrderItemRequest, _ int) store.OrderItem {
			return store.OrderItem{
				ProductID: it.ProductID,
				Name:      it.Name,
				Quantity:  it.Quantity,
				Price:     it.Price,
				Image:     it.Image,
			}
		}),
		ShippingAddress: *shipping,
		PaymentMethod:   req.PaymentMethod,
		Total:           lo.CoalesceOrEmpty(req.TotalAmount, req.Total, req.SubTotal),
	}
	if req.ShippingMethod != nil {
		in.ShippingPrice = lo.ToPtr(req.ShippingMethod.Price)
	}

	order, err := h.service.Create(c.Request.Context(), currentUserID(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListMyOrders returns the caller's orders.
// GET /api/orders
func (h *OrderHandlers) ListMyOrders(c *gin.Context) {
	list, err := h.service.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if list == nil {
		list = []*store.Order{}
	}
	c.JSON(http.StatusOK, list)
}

// UpdateOrderStatus changes an order's status. Admin only.
// PUT|PATCH /api/orders/:id/status
func (h *OrderHandlers) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, changed, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), store.OrderStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, OrderStatusResponse{Changed: changed, Order: order})
}

// CancelOrder cancels one of the caller's orders.
// POST /api/orders/:id/cancel
func (h *OrderHandlers) CancelOrder(c *gin.Context) {
	order, err := h.service.Cancel(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrInvalidOrder), errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, orders.ErrCannotCancel):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, orders.ErrNotOwner):
		// Other users' orders are reported as missing.
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("order request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
