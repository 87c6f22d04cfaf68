package model

import "time"

// OrderStatus enumerates the lifecycle states of a booking order.  The
// legal transitions are:
//
//	PENDING_PAYMENT -> PAID       (verified payment success)
//	PENDING_PAYMENT -> CANCELLED  (user cancel or payment timeout)
//	PAID            -> IN_USE     (check-in)
//	PAID            -> REFUNDED   (refund request)
//	IN_USE          -> COMPLETED  (session end)
//
// CANCELLED, REFUNDED and COMPLETED are terminal.  All other requested
// transitions are invalid-state errors.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderPaid           OrderStatus = "PAID"
	OrderInUse          OrderStatus = "IN_USE"
	OrderCompleted      OrderStatus = "COMPLETED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderRefunded       OrderStatus = "REFUNDED"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCancelled || s == OrderRefunded || s == OrderCompleted
}

// ConflictSource reports whether an order in this status blocks the same
// user from booking an overlapping time window.  Pending orders are not
// conflict sources because they may still expire unpaid.
func (s OrderStatus) ConflictSource() bool {
	return s == OrderPaid || s == OrderInUse || s == OrderCompleted
}

// Order records a user's booking of one seat for a time window.  Orders
// are created by the booking flow in PENDING_PAYMENT, mutated only via
// state-machine transitions, and never deleted; cancellation and refund
// are soft terminal states.
//
// Fields:
//  ID            – primary key identifier.
//  OrderNo       – unique, externally visible order number.
//  UserID        – user who placed the order.
//  SeatID        – seat being booked.
//  RoomID        – room the seat belongs to (denormalized for display).
//  StartTime     – booked window start (UTC).
//  EndTime       – booked window end (UTC).
//  DurationHours – whole hours between start and end.
//  AmountCents   – amount due, hourly seat price times duration.
//  Status        – lifecycle state, see OrderStatus.
//  PayMethod     – payment method recorded on the PAID transition.
//  PayTime       – timestamp recorded on the PAID transition.
//  TransactionID – payment transaction id recorded on the PAID transition.
//  CancelReason  – reason recorded on the CANCELLED transition.
//  CancelTime    – timestamp recorded on the CANCELLED transition.
//  CreatedAt     – creation timestamp; the payment window counts from here.
//  UpdatedAt     – last update timestamp.
type Order struct {
	ID            uint64      // orders.id
	OrderNo       string      // orders.order_no
	UserID        uint64      // orders.user_id
	SeatID        uint64      // orders.seat_id
	RoomID        uint64      // orders.room_id
	StartTime     time.Time   // orders.start_time
	EndTime       time.Time   // orders.end_time
	DurationHours int         // orders.duration_hours
	AmountCents   uint32      // orders.amount_cents
	Status        OrderStatus // orders.status
	PayMethod     *string     // orders.pay_method (nullable)
	PayTime       *time.Time  // orders.pay_time (nullable)
	TransactionID *string     // orders.transaction_id (nullable)
	CancelReason  *string     // orders.cancel_reason (nullable)
	CancelTime    *time.Time  // orders.cancel_time (nullable)
	CreatedAt     time.Time   // orders.created_at
	UpdatedAt     time.Time   // orders.updated_at
}

// Overlaps reports whether the order's booked window intersects the
// given half-open interval [start, end).
func (o *Order) Overlaps(start, end time.Time) bool {
	return o.StartTime.Before(end) && start.Before(o.EndTime)
}
