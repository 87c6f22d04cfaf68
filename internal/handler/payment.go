package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/coldscholor/shared-room/internal/middleware"
	"github.com/coldscholor/shared-room/internal/model"
	"github.com/coldscholor/shared-room/internal/queue"
	"github.com/coldscholor/shared-room/internal/service"
)

// PaymentHandler exposes payment attempts, the synchronous result
// callback and refunds.  The asynchronous result path is the queue
// consumer; Notify exists for providers that only speak HTTP.
type PaymentHandler struct {
	Payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: payments}
}

type createPaymentReq struct {
	OrderID uint64 `json:"order_id"`
	Method  string `json:"method"`
}

type paymentResp struct {
	TransactionID string  `json:"transaction_id"`
	OrderID       uint64  `json:"order_id"`
	AmountCents   uint32  `json:"amount_cents"`
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	PaidAt        *string `json:"paid_at,omitempty"`
}

func toPaymentResp(p *model.Payment) paymentResp {
	resp := paymentResp{
		TransactionID: p.TransactionID,
		OrderID:       p.OrderID,
		AmountCents:   p.AmountCents,
		Method:        p.Method,
		Status:        string(p.Status),
	}
	if p.PaidAt != nil {
		s := p.PaidAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.PaidAt = &s
	}
	return resp
}

// Create opens a payment attempt for a pending order:
// POST /api/v1/payments.
func (h *PaymentHandler) Create(c echo.Context) error {
	var req createPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.OrderID == 0 || req.Method == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id and method required"})
	}
	p, err := h.Payments.CreatePayment(c.Request().Context(), req.OrderID, middleware.UserID(c), req.Method)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, toPaymentResp(p))
}

// Notify receives a payment result from the provider's HTTP callback:
// POST /api/v1/payments/notify.  Same idempotent handling as the queue
// path; a duplicate delivery answers 200 like the first one did.
func (h *PaymentHandler) Notify(c echo.Context) error {
	var msg queue.PaymentResultMessage
	if err := c.Bind(&msg); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg.TransactionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_id required"})
	}
	if err := h.Payments.HandlePaymentResult(c.Request().Context(), msg); err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Query returns the payment's current status, reconciling against the
// provider when the local record is still pending:
// GET /api/v1/payments/:transaction_id.
func (h *PaymentHandler) Query(c echo.Context) error {
	txID := c.Param("transaction_id")
	if txID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_id required"})
	}
	p, err := h.Payments.QueryStatus(c.Request().Context(), txID, middleware.UserID(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResp(p))
}

// Refund refunds a successful payment and releases the seat:
// POST /api/v1/payments/:transaction_id/refund.
func (h *PaymentHandler) Refund(c echo.Context) error {
	txID := c.Param("transaction_id")
	if txID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "transaction_id required"})
	}
	p, err := h.Payments.Refund(c.Request().Context(), txID, middleware.UserID(c))
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentResp(p))
}
