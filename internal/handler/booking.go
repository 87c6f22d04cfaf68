package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/coldscholor/shared-room/internal/middleware"
	"github.com/coldscholor/shared-room/internal/model"
	"github.com/coldscholor/shared-room/internal/repository"
	"github.com/coldscholor/shared-room/internal/service"
)

// BookingHandler exposes the order lifecycle over HTTP.  All routes are
// JWT protected; the user id comes from the token, never the body.
type BookingHandler struct {
	Orders *service.OrderService
}

func NewBookingHandler(orders *service.OrderService) *BookingHandler {
	return &BookingHandler{Orders: orders}
}

type createOrderReq struct {
	SeatID    uint64    `json:"seat_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type orderResp struct {
	ID            uint64     `json:"id"`
	OrderNo       string     `json:"order_no"`
	SeatID        uint64     `json:"seat_id"`
	RoomID        uint64     `json:"room_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	DurationHours int        `json:"duration_hours"`
	AmountCents   uint32     `json:"amount_cents"`
	Status        string     `json:"status"`
	PayMethod     *string    `json:"pay_method,omitempty"`
	PayTime       *time.Time `json:"pay_time,omitempty"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	CancelReason  *string    `json:"cancel_reason,omitempty"`
	CancelTime    *time.Time `json:"cancel_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toOrderResp(o *model.Order) orderResp {
	return orderResp{
		ID:            o.ID,
		OrderNo:       o.OrderNo,
		SeatID:        o.SeatID,
		RoomID:        o.RoomID,
		StartTime:     o.StartTime,
		EndTime:       o.EndTime,
		DurationHours: o.DurationHours,
		AmountCents:   o.AmountCents,
		Status:        string(o.Status),
		PayMethod:     o.PayMethod,
		PayTime:       o.PayTime,
		TransactionID: o.TransactionID,
		CancelReason:  o.CancelReason,
		CancelTime:    o.CancelTime,
		CreatedAt:     o.CreatedAt,
	}
}

// bookingError maps core errors to HTTP responses.  Contention gets a
// Retry-After so well-behaved clients back off before retrying the same
// seat.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidTimeWindow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrNotOrderOwner):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, service.ErrTimeConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "overlapping booking exists"})
	case errors.Is(err, service.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat not available"})
	case errors.Is(err, service.ErrSeatLockContended):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusConflict, echo.Map{"error": "seat busy, try again"})
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "operation not allowed in current state"})
	case errors.Is(err, service.ErrOrderExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "payment window has lapsed"})
	case errors.Is(err, service.ErrAmountMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount mismatch"})
	case errors.Is(err, service.ErrCollaboratorUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// Create books a seat: POST /api/v1/orders.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SeatID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_id required"})
	}
	order, err := h.Orders.CreateOrder(c.Request().Context(), middleware.UserID(c), service.CreateOrderInput{
		SeatID:    req.SeatID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResp(order))
}

// Get returns one of the caller's orders: GET /api/v1/orders/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	order, err := h.Orders.GetOrder(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order))
}

// GetByNo looks an order up by its order number:
// GET /api/v1/orders/no/:order_no.
func (h *BookingHandler) GetByNo(c echo.Context) error {
	no := c.Param("order_no")
	if no == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_no required"})
	}
	order, err := h.Orders.GetOrderByNo(c.Request().Context(), no, middleware.UserID(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResp(order))
}

// List returns the caller's orders, optionally filtered by ?status=:
// GET /api/v1/orders.
func (h *BookingHandler) List(c echo.Context) error {
	var status *model.OrderStatus
	if raw := c.QueryParam("status"); raw != "" {
		st := model.OrderStatus(raw)
		switch st {
		case model.OrderPendingPayment, model.OrderPaid, model.OrderInUse,
			model.OrderCompleted, model.OrderCancelled, model.OrderRefunded:
			status = &st
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
	}
	orders, err := h.Orders.ListOrders(c.Request().Context(), middleware.UserID(c), status)
	if err != nil {
		return bookingError(c, err)
	}
	out := make([]orderResp, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResp(&orders[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}

// Cancel cancels a pending order: POST /api/v1/orders/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Orders.Cancel(c.Request().Context(), id, middleware.UserID(c)); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CheckIn starts the booked session: POST /api/v1/orders/:id/checkin.
func (h *BookingHandler) CheckIn(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Orders.CheckIn(c.Request().Context(), id, middleware.UserID(c)); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Complete ends the session: POST /api/v1/orders/:id/complete.
func (h *BookingHandler) Complete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Orders.Complete(c.Request().Context(), id, middleware.UserID(c)); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
