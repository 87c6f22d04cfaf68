// Package queue defines the message payloads exchanged over the broker
// and the queue names they travel on.  Domain events are fire-and-
// forget: delivery failures never roll back the core state transition
// that produced them.
package queue

// Queue names.  Events are published to durable queues on the default
// exchange; the payment service publishes results to PaymentResultQueue
// and this service consumes them.
const (
	OrderCreatedQueue  = "order.created"
	OrderPaidQueue     = "order.paid"
	OrderCancelledQueue = "order.cancelled"
	SeatReservedQueue  = "seat.reserved"
	SeatReleasedQueue  = "seat.released"
	PaymentResultQueue = "payment.result"
)

// OrderCreatedEvent is published when a booking order is created and a
// seat hold is in place.
type OrderCreatedEvent struct {
	OrderID     uint64 `json:"order_id"`
	OrderNo     string `json:"order_no"`
	UserID      uint64 `json:"user_id"`
	SeatID      uint64 `json:"seat_id"`
	RoomID      uint64 `json:"room_id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	AmountCents uint32 `json:"amount_cents"`
	CreatedAt   string `json:"created_at"`
}

// OrderPaidEvent is published when a payment-success signal is applied
// to an order.
type OrderPaidEvent struct {
	OrderID       uint64 `json:"order_id"`
	OrderNo       string `json:"order_no"`
	UserID        uint64 `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	AmountCents   uint32 `json:"amount_cents"`
	PaidAt        string `json:"paid_at"`
}

// OrderCancelledEvent is published when an order is cancelled, whether
// by the user or by the payment-window expiry.
type OrderCancelledEvent struct {
	OrderID     uint64 `json:"order_id"`
	OrderNo     string `json:"order_no"`
	UserID      uint64 `json:"user_id"`
	Reason      string `json:"reason"`
	CancelledAt string `json:"cancelled_at"`
}

// SeatReservedEvent is published when a seat transitions to RESERVED.
type SeatReservedEvent struct {
	SeatID     uint64 `json:"seat_id"`
	OrderID    uint64 `json:"order_id"`
	ReservedAt string `json:"reserved_at"`
}

// SeatReleasedEvent is published when a seat transitions back to FREE.
type SeatReleasedEvent struct {
	SeatID     uint64 `json:"seat_id"`
	OrderID    uint64 `json:"order_id"`
	ReleasedAt string `json:"released_at"`
}

// PaymentResultMessage is consumed from the payment collaborator.  The
// transaction id is the idempotency key; Outcome is "SUCCESS" or
// "FAILED".
type PaymentResultMessage struct {
	TransactionID string `json:"transaction_id"`
	AmountCents   uint32 `json:"amount_cents"`
	Outcome       string `json:"outcome"`
}
