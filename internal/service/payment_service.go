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

// OrderCollaborator is the order side of the payment flow.  Implemented
// by OrderService.
type OrderCollaborator interface {
	Get(ctx context.Context, orderID uint64) (*model.Order, error)
	Pay(ctx context.Context, orderID uint64, method, transactionID string, paidAt time.Time) error
	Refund(ctx context.Context, orderID, userID uint64) error
}

// PaymentProvider answers authoritative status queries for a
// transaction.  Used as the secondary reconciliation path when the
// asynchronous result signal is delayed or lost.
type PaymentProvider interface {
	QueryStatus(ctx context.Context, transactionID string) (model.PaymentStatus, error)
}

// PaymentService reconciles payment outcomes with order state.  Every
// inbound signal is keyed by transaction id and applied at most once;
// amount mismatches are rejected outright.
type PaymentService struct {
	payments repository.PaymentStore
	orders   OrderCollaborator
	provider PaymentProvider // may be nil; reconciliation then trusts local state
	cfg      config.BookingConfig
}

func NewPaymentService(payments repository.PaymentStore, orders OrderCollaborator, provider PaymentProvider, cfg config.BookingConfig) *PaymentService {
	return &PaymentService{payments: payments, orders: orders, provider: provider, cfg: cfg}
}

// CreatePayment opens a payment attempt for the caller's
// PENDING_PAYMENT order.  A still-pending attempt for the same order is
// reused rather than duplicated, so a user retrying the pay page keeps
// one transaction id.
func (s *PaymentService) CreatePayment(ctx context.Context, orderID, userID uint64, method string) (*model.Payment, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	if order.Status != model.OrderPendingPayment {
		return nil, ErrInvalidState
	}
	if time.Now().UTC().Sub(order.CreatedAt) >= s.cfg.PaymentWindow {
		return nil, ErrOrderExpired
	}

	if p, err := s.payments.GetPendingByOrder(ctx, orderID); err == nil {
		return p, nil
	} else if !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Payment{
		TransactionID: utils.NewTransactionID(),
		OrderID:       order.ID,
		UserID:        order.UserID,
		AmountCents:   order.AmountCents,
		Method:        method,
		Status:        model.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

// HandlePaymentResult applies one asynchronous payment-result signal.
// The transaction id keys the whole operation: an unknown id is an
// error, a repeat of an already-applied success is a silent no-op, and
// an amount differing from the order's recorded amount is rejected
// before any state changes.
func (s *PaymentService) HandlePaymentResult(ctx context.Context, msg queue.PaymentResultMessage) error {
	p, err := s.payments.GetByTransactionID(ctx, msg.TransactionID)
	if err != nil {
		return err
	}

	if msg.Outcome != "SUCCESS" {
		if _, err := s.payments.MarkStatus(ctx, p.ID, model.PaymentPending, model.PaymentFailed, nil); err != nil {
			return fmt.Errorf("mark payment %s failed: %w", p.TransactionID, err)
		}
		return nil
	}

	order, err := s.orders.Get(ctx, p.OrderID)
	if err != nil {
		return err
	}
	// Duplicate of a signal that already went through.
	switch order.Status {
	case model.OrderPaid, model.OrderInUse, model.OrderCompleted:
		now := time.Now().UTC()
		if _, err := s.payments.MarkStatus(ctx, p.ID, model.PaymentPending, model.PaymentSuccess, &now); err != nil {
			return fmt.Errorf("mark payment %s success: %w", p.TransactionID, err)
		}
		return nil
	}
	if msg.AmountCents != order.AmountCents {
		return fmt.Errorf("%w: transaction %s declared %d, order %d expects %d",
			ErrAmountMismatch, p.TransactionID, msg.AmountCents, order.ID, order.AmountCents)
	}

	now := time.Now().UTC()
	if err := s.orders.Pay(ctx, p.OrderID, p.Method, p.TransactionID, now); err != nil {
		if errors.Is(err, ErrInvalidState) {
			// The payment window expired between the user paying and
			// the signal arriving.  The order side stays cancelled; the
			// money side is flagged for manual reconciliation.
			log.Printf("payment %s: order %d is terminal, success discarded", p.TransactionID, p.OrderID)
			if _, merr := s.payments.MarkStatus(ctx, p.ID, model.PaymentPending, model.PaymentFailed, nil); merr != nil {
				return fmt.Errorf("mark payment %s failed: %w", p.TransactionID, merr)
			}
			return nil
		}
		return err
	}
	if _, err := s.payments.MarkStatus(ctx, p.ID, model.PaymentPending, model.PaymentSuccess, &now); err != nil {
		return fmt.Errorf("mark payment %s success: %w", p.TransactionID, err)
	}
	return nil
}

// QueryStatus returns the payment record, first reconciling a
// still-pending one against the provider when a provider is configured.
// A provider-reported success goes through the same idempotent apply
// path as the asynchronous signal.
func (s *PaymentService) QueryStatus(ctx context.Context, transactionID string, userID uint64) (*model.Payment, error) {
	p, err := s.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	if p.Status != model.PaymentPending || s.provider == nil {
		return p, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CollaboratorTimeout)
	st, qerr := s.provider.QueryStatus(cctx, transactionID)
	cancel()
	if qerr != nil {
		// Degrade to local state; the next query or the async signal
		// will reconcile.
		log.Printf("payment %s: provider query failed: %v", transactionID, qerr)
		return p, nil
	}
	switch st {
	case model.PaymentSuccess:
		if err := s.HandlePaymentResult(ctx, queue.PaymentResultMessage{
			TransactionID: transactionID,
			AmountCents:   p.AmountCents,
			Outcome:       "SUCCESS",
		}); err != nil {
			return nil, err
		}
	case model.PaymentFailed:
		if _, err := s.payments.MarkStatus(ctx, p.ID, model.PaymentPending, model.PaymentFailed, nil); err != nil {
			return nil, err
		}
	}
	return s.payments.GetByTransactionID(ctx, transactionID)
}

// Refund refunds a successful payment: the order side's guarded
// PAID -> REFUNDED transition runs first, and only its winner flips the
// payment record.  Refunding an already-refunded transaction is a
// no-op.
func (s *PaymentService) Refund(ctx context.Context, transactionID string, userID uint64) (*model.Payment, error) {
	p, err := s.payments.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotOrderOwner
	}
	if p.Status == model.PaymentRefunded {
		return p, nil
	}
	if p.Status != model.PaymentSuccess {
		return nil, ErrInvalidState
	}
	if err := s.orders.Refund(ctx, p.OrderID, userID); err != nil {
		return nil, err
	}
	if _, err := s.payments.MarkStatus(ctx, p.ID, model.PaymentSuccess, model.PaymentRefunded, nil); err != nil {
		return nil, fmt.Errorf("mark payment %s refunded: %w", transactionID, err)
	}
	return s.payments.GetByTransactionID(ctx, transactionID)
}

// Retryable classifies a payment-result handling error for the queue
// consumer: infrastructure errors are worth redelivery, domain
// rejections are not.
func Retryable(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrAmountMismatch),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrOrderNotFound):
		return false
	}
	return true
}
