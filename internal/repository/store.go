package repository

import (
	"context"
	"time"

	"github.com/coldscholor/shared-room/internal/model"
)

// SeatStore persists seat state.  Status writes are plain sets; the
// seat service serializes them under the per-seat lock.
type SeatStore interface {
	GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error)
	SetSeatStatus(ctx context.Context, seatID uint64, status model.SeatStatus) error
	ListAvailableByRoom(ctx context.Context, roomID uint64) ([]model.Seat, error)
	CreateSeat(ctx context.Context, seat *model.Seat) error
}

// OrderStore persists orders.  The Mark* methods are compare-and-set
// transitions: they update the row only when it is still in the
// expected source state and report whether a row changed.  That check
// is what serializes racing transitions for a single order — exactly
// one caller observes changed=true.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, orderID uint64) (*model.Order, error)
	GetOrderByNo(ctx context.Context, orderNo string) (*model.Order, error)
	ListByUser(ctx context.Context, userID uint64, status *model.OrderStatus) ([]model.Order, error)

	// ListConflicting returns the user's orders in a conflict-source
	// status whose booked window overlaps [start, end).
	ListConflicting(ctx context.Context, userID uint64, start, end time.Time) ([]model.Order, error)

	// ListExpiredPending returns PENDING_PAYMENT orders created before
	// the cutoff, for the expiration sweep.
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]model.Order, error)

	MarkPaid(ctx context.Context, orderID uint64, method, transactionID string, paidAt time.Time) (bool, error)
	MarkCancelled(ctx context.Context, orderID uint64, reason string, at time.Time) (bool, error)
	MarkInUse(ctx context.Context, orderID uint64) (bool, error)
	MarkCompleted(ctx context.Context, orderID uint64) (bool, error)
	MarkRefunded(ctx context.Context, orderID uint64) (bool, error)
}

// PaymentStore persists payment records keyed by transaction id.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error)
	GetPendingByOrder(ctx context.Context, orderID uint64) (*model.Payment, error)

	// MarkStatus transitions the payment from one status to another,
	// reporting whether a row changed.  Same compare-and-set contract
	// as OrderStore.
	MarkStatus(ctx context.Context, paymentID uint64, from, to model.PaymentStatus, paidAt *time.Time) (bool, error)
}

// UserStore persists accounts for the auth endpoints.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
