package model

import "time"

// PaymentStatus enumerates the states of a payment record.  The booking
// core consumes payment records keyed by transaction id and must
// tolerate the same success signal arriving more than once.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Payment records one payment attempt against an order.  The
// transaction id doubles as the idempotency key for asynchronous
// payment-result signals.
//
// Fields:
//  ID            – primary key identifier.
//  TransactionID – unique payment transaction id (idempotency key).
//  OrderID       – order being paid.
//  UserID        – user who owns the order.
//  AmountCents   – declared amount; must equal the order amount.
//  Method        – payment method (e.g. "alipay", "wechat").
//  Status        – payment state, see PaymentStatus.
//  PaidAt        – timestamp of the successful payment, if any.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Payment struct {
	ID            uint64        // payments.id
	TransactionID string        // payments.transaction_id
	OrderID       uint64        // payments.order_id
	UserID        uint64        // payments.user_id
	AmountCents   uint32        // payments.amount_cents
	Method        string        // payments.method
	Status        PaymentStatus // payments.status
	PaidAt        *time.Time    // payments.paid_at (nullable)
	CreatedAt     time.Time     // payments.created_at
	UpdatedAt     time.Time     // payments.updated_at
}
