package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/coldscholor/shared-room/internal/config"
	"github.com/coldscholor/shared-room/internal/model"
	"github.com/coldscholor/shared-room/internal/queue"
	"github.com/coldscholor/shared-room/internal/repository"
	"github.com/coldscholor/shared-room/internal/utils"
)

// SeatManager is the seat collaborator consumed by the booking flow.
// Implemented by SeatService; tests substitute fakes.
type SeatManager interface {
	GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error)
	CheckAvailable(ctx context.Context, seatID uint64) (bool, error)
	TryReserve(ctx context.Context, seatID uint64) error
	Release(ctx context.Context, seatID uint64) error
	MarkInUse(ctx context.Context, seatID uint64) error
}

// EventPublisher delivers domain events.  Publishing is best effort:
// failures are logged by the caller and never fail the transition that
// produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, queueName string, event any) error
}

// ExpiryArmer schedules a payment-deadline timer for a freshly created
// order.  Implemented by the expiration scheduler.
type ExpiryArmer interface {
	Arm(orderID uint64, createdAt time.Time)
}

const (
	cancelReasonTimeout = "payment timeout"
	cancelReasonUser    = "user cancel"
)

// OrderService is the order state machine and the coordinator of the
// booking flow.  All status changes go through the store's
// compare-and-set transitions, so racing callers resolve to exactly one
// winner; the winner alone performs the associated seat side effect.
type OrderService struct {
	orders repository.OrderStore
	seats  SeatManager
	events EventPublisher // may be nil
	expiry ExpiryArmer    // may be nil; the sweep still catches expiries
	cfg    config.BookingConfig
}

func NewOrderService(orders repository.OrderStore, seats SeatManager, events EventPublisher, cfg config.BookingConfig) *OrderService {
	return &OrderService{orders: orders, seats: seats, events: events, cfg: cfg}
}

// SetExpiryArmer wires the per-order timer source.  Set once at startup;
// the scheduler needs the service to cancel with, so the dependency is
// closed after both exist.
func (s *OrderService) SetExpiryArmer(a ExpiryArmer) {
	s.expiry = a
}

// CreateOrderInput carries the user-supplied fields of a booking
// request.  Times are interpreted as UTC.
type CreateOrderInput struct {
	SeatID    uint64
	StartTime time.Time
	EndTime   time.Time
}

// CreateOrder runs the booking flow: validate the window, reject
// overlaps with the user's active orders, reserve the seat, then create
// the order in PENDING_PAYMENT and arm its payment timer.  If order
// creation fails after the seat was reserved, the hold is released
// before the error surfaces, so no seat is left reserved without an
// order referencing it.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint64, in CreateOrderInput) (*model.Order, error) {
	now := time.Now().UTC()
	start, end := in.StartTime.UTC(), in.EndTime.UTC()

	if !end.After(start) {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidTimeWindow)
	}
	if start.Before(now) {
		return nil, fmt.Errorf("%w: start is in the past", ErrInvalidTimeWindow)
	}
	hours := int(end.Sub(start) / time.Hour)
	if hours < 1 {
		return nil, fmt.Errorf("%w: booking must cover at least one full hour", ErrInvalidTimeWindow)
	}
	if hours > s.cfg.MaxBookingHours {
		return nil, fmt.Errorf("%w: booking exceeds %d hours", ErrInvalidTimeWindow, s.cfg.MaxBookingHours)
	}

	conflicts, err := s.orders.ListConflicting(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("check time conflicts: %w", err)
	}
	if len(conflicts) > 0 {
		return nil, ErrTimeConflict
	}

	seat, err := seatCall(ctx, s.cfg.CollaboratorTimeout, func(cctx context.Context) (*model.Seat, error) {
		return s.seats.GetSeat(cctx, in.SeatID)
	})
	if err != nil {
		return nil, err
	}

	// Advisory pre-check; TryReserve re-verifies under the lock.
	avail, err := seatCall(ctx, s.cfg.CollaboratorTimeout, func(cctx context.Context) (bool, error) {
		return s.seats.CheckAvailable(cctx, in.SeatID)
	})
	if err != nil {
		return nil, err
	}
	if !avail {
		return nil, ErrSeatUnavailable
	}

	if _, err := seatCall(ctx, s.cfg.CollaboratorTimeout, func(cctx context.Context) (struct{}, error) {
		return struct{}{}, s.seats.TryReserve(cctx, in.SeatID)
	}); err != nil {
		return nil, err
	}

	order := &model.Order{
		OrderNo:       utils.NewOrderNo(),
		UserID:        userID,
		SeatID:        seat.ID,
		RoomID:        seat.RoomID,
		StartTime:     start,
		EndTime:       end,
		DurationHours: hours,
		AmountCents:   seat.HourlyPriceCents * uint32(hours),
		Status:        model.OrderPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		// Compensate: the seat hold must not outlive a failed create.
		s.releaseSeat(ctx, seat.ID, 0)
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.expiry != nil {
		s.expiry.Arm(order.ID, order.CreatedAt)
	}
	s.publish(ctx, queue.OrderCreatedQueue, queue.OrderCreatedEvent{
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		UserID:      order.UserID,
		SeatID:      order.SeatID,
		RoomID:      order.RoomID,
		StartTime:   order.StartTime.Format(time.RFC3339),
		EndTime:     order.EndTime.Format(time.RFC3339),
		AmountCents: order.AmountCents,
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
	})
	s.publish(ctx, queue.SeatReservedQueue, queue.SeatReservedEvent{
		SeatID:     order.SeatID,
		OrderID:    order.ID,
		ReservedAt: now.Format(time.RFC3339),
	})
	return order, nil
}

// Cancel cancels the caller's own PENDING_PAYMENT order.  Cancelling an
// order that is already terminal is a no-op; cancelling a PAID or
// IN_USE order is an invalid-state error (refund is the path out of
// PAID).
func (s *OrderService) Cancel(ctx context.Context, orderID, userID uint64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	if order.Status.Terminal() {
		return nil
	}
	won, err := s.cancelPending(ctx, order, cancelReasonUser)
	if err != nil {
		return err
	}
	if !won {
		// Lost the race; accept only if the other side reached a
		// terminal state (e.g. the expiry fired first).
		cur, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return nil
		}
		return ErrInvalidState
	}
	return nil
}

// CancelExpired cancels one order whose payment window has lapsed.  It
// re-validates state before acting, so a timer firing after the order
// was paid or user-cancelled is a harmless no-op.  Called by both the
// per-order timer and the sweep.
func (s *OrderService) CancelExpired(ctx context.Context, orderID uint64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil
		}
		return err
	}
	if order.Status != model.OrderPendingPayment {
		return nil
	}
	if time.Now().UTC().Sub(order.CreatedAt) < s.cfg.PaymentWindow {
		return nil
	}
	_, err = s.cancelPending(ctx, order, cancelReasonTimeout)
	return err
}

// SweepExpiredOnce scans for orders stuck in PENDING_PAYMENT past the
// window and cancels them.  Backstop for lost timers; returns how many
// orders this pass cancelled.
func (s *OrderService) SweepExpiredOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.PaymentWindow)
	expired, err := s.orders.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list expired orders: %w", err)
	}
	cancelled := 0
	for i := range expired {
		won, err := s.cancelPending(ctx, &expired[i], cancelReasonTimeout)
		if err != nil {
			log.Printf("sweep: cancel order %d failed: %v", expired[i].ID, err)
			continue
		}
		if won {
			cancelled++
		}
	}
	return cancelled, nil
}

// cancelPending performs the guarded PENDING_PAYMENT -> CANCELLED
// transition.  Only the winner releases the seat and publishes the
// cancellation event.
func (s *OrderService) cancelPending(ctx context.Context, order *model.Order, reason string) (bool, error) {
	now := time.Now().UTC()
	won, err := s.orders.MarkCancelled(ctx, order.ID, reason, now)
	if err != nil {
		return false, fmt.Errorf("cancel order %d: %w", order.ID, err)
	}
	if !won {
		return false, nil
	}
	s.releaseSeat(ctx, order.SeatID, order.ID)
	s.publish(ctx, queue.OrderCancelledQueue, queue.OrderCancelledEvent{
		OrderID:     order.ID,
		OrderNo:     order.OrderNo,
		UserID:      order.UserID,
		Reason:      reason,
		CancelledAt: now.Format(time.RFC3339),
	})
	return true, nil
}

// Pay applies a verified payment-success signal: the guarded
// PENDING_PAYMENT -> PAID transition.  Amount validation is the payment
// service's job; by the time Pay is called the signal is trusted.
// Applying to an order that is already PAID or further along is a
// no-op, so duplicate signals are harmless.
func (s *OrderService) Pay(ctx context.Context, orderID uint64, method, transactionID string, paidAt time.Time) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case model.OrderPaid, model.OrderInUse, model.OrderCompleted:
		return nil
	case model.OrderCancelled, model.OrderRefunded:
		return ErrInvalidState
	}
	won, err := s.orders.MarkPaid(ctx, orderID, method, transactionID, paidAt.UTC())
	if err != nil {
		return fmt.Errorf("mark order %d paid: %w", orderID, err)
	}
	if !won {
		cur, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status == model.OrderPaid || cur.Status == model.OrderInUse || cur.Status == model.OrderCompleted {
			return nil
		}
		// The expiry won the race; the order is cancelled now.
		return ErrInvalidState
	}
	s.publish(ctx, queue.OrderPaidQueue, queue.OrderPaidEvent{
		OrderID:       order.ID,
		OrderNo:       order.OrderNo,
		UserID:        order.UserID,
		TransactionID: transactionID,
		AmountCents:   order.AmountCents,
		PaidAt:        paidAt.UTC().Format(time.RFC3339),
	})
	return nil
}

// CheckIn transitions the caller's PAID order to IN_USE and flips the
// seat to IN_USE alongside it.
func (s *OrderService) CheckIn(ctx context.Context, orderID, userID uint64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	if order.Status == model.OrderInUse {
		return nil
	}
	won, err := s.orders.MarkInUse(ctx, orderID)
	if err != nil {
		return fmt.Errorf("mark order %d in use: %w", orderID, err)
	}
	if !won {
		return ErrInvalidState
	}
	if _, err := seatCall(ctx, s.cfg.CollaboratorTimeout, func(cctx context.Context) (struct{}, error) {
		return struct{}{}, s.seats.MarkInUse(cctx, order.SeatID)
	}); err != nil {
		log.Printf("order %d: seat %d in-use mark failed: %v", orderID, order.SeatID, err)
	}
	return nil
}

// Complete ends the caller's IN_USE session: the order becomes
// COMPLETED and the seat returns to FREE.
func (s *OrderService) Complete(ctx context.Context, orderID, userID uint64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	if order.Status == model.OrderCompleted {
		return nil
	}
	won, err := s.orders.MarkCompleted(ctx, orderID)
	if err != nil {
		return fmt.Errorf("mark order %d completed: %w", orderID, err)
	}
	if !won {
		return ErrInvalidState
	}
	s.releaseSeat(ctx, order.SeatID, order.ID)
	return nil
}

// Refund performs the guarded PAID -> REFUNDED transition and frees the
// seat.  The payment service drives the money side and calls this for
// the order side; exactly one of a racing refund pair wins here.
func (s *OrderService) Refund(ctx context.Context, orderID, userID uint64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrNotOrderOwner
	}
	if order.Status == model.OrderRefunded {
		return nil
	}
	won, err := s.orders.MarkRefunded(ctx, orderID)
	if err != nil {
		return fmt.Errorf("mark order %d refunded: %w", orderID, err)
	}
	if !won {
		cur, err := s.orders.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if cur.Status == model.OrderRefunded {
			return nil
		}
		return ErrInvalidState
	}
	s.releaseSeat(ctx, order.SeatID, order.ID)
	return nil
}

// GetOrder returns the caller's own order.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uint64) (*model.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	return order, nil
}

// GetOrderByNo returns the caller's own order looked up by order number.
func (s *OrderService) GetOrderByNo(ctx context.Context, orderNo string, userID uint64) (*model.Order, error) {
	order, err := s.orders.GetOrderByNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	return order, nil
}

// ListOrders returns the user's orders, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, userID uint64, status *model.OrderStatus) ([]model.Order, error) {
	return s.orders.ListByUser(ctx, userID, status)
}

// Get returns an order without an ownership check, for internal
// collaborators (the payment service).
func (s *OrderService) Get(ctx context.Context, orderID uint64) (*model.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}

// seatCall runs one seat-collaborator call under the collaborator
// timeout.  Domain outcomes pass through untouched; transport failures
// and timeouts come back as ErrCollaboratorUnavailable.
func seatCall[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	v, err := fn(cctx)
	if err == nil {
		return v, nil
	}
	switch {
	case errors.Is(err, ErrSeatUnavailable),
		errors.Is(err, ErrSeatLockContended),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, repository.ErrSeatNotFound):
		return v, err
	default:
		return v, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
}

// releaseSeat frees a seat on a background context so cancellation of
// the triggering request cannot strand the hold.
func (s *OrderService) releaseSeat(ctx context.Context, seatID, orderID uint64) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CollaboratorTimeout)
	defer cancel()
	if err := s.seats.Release(rctx, seatID); err != nil {
		// The lease TTL and the sweep re-run will not help a stranded
		// seat, so this is the one log line worth paging on.
		log.Printf("order %d: seat %d release failed: %v", orderID, seatID, err)
		return
	}
	if orderID != 0 {
		s.publish(ctx, queue.SeatReleasedQueue, queue.SeatReleasedEvent{
			SeatID:     seatID,
			OrderID:    orderID,
			ReleasedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func (s *OrderService) publish(ctx context.Context, queueName string, event any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), queueName, event); err != nil {
		log.Printf("publish %s: %v", queueName, err)
	}
}
