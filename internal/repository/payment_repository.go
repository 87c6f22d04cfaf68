package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coldscholor/shared-room/internal/model"
)

// PaymentRepo provides MySQL-backed access to the payments table.  It
// implements PaymentStore.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo constructs a PaymentRepo with the given DB handle.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, transaction_id, order_id, user_id, amount_cents, method, status, paid_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.TransactionID, &p.OrderID, &p.UserID,
		&p.AmountCents, &p.Method, &p.Status, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment inserts a new payment record and fills in its generated
// id and creation timestamp.
func (r *PaymentRepo) CreatePayment(ctx context.Context, payment *model.Payment) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (transaction_id, order_id, user_id, amount_cents, method, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.TransactionID, payment.OrderID, payment.UserID,
		payment.AmountCents, payment.Method, payment.Status, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	payment.CreatedAt = now
	payment.UpdatedAt = now
	return nil
}

// GetByTransactionID fetches a payment by its transaction id.  Returns
// ErrPaymentNotFound when no row exists.
func (r *PaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ?`, transactionID)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// GetPendingByOrder returns the order's PENDING payment record, if one
// exists, so a repeat pay request reuses it instead of creating a
// duplicate.  Returns ErrPaymentNotFound when there is none.
func (r *PaymentRepo) GetPendingByOrder(ctx context.Context, orderID uint64) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = ? AND status = ? ORDER BY created_at LIMIT 1`,
		orderID, model.PaymentPending)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// MarkStatus transitions the payment from one status to another,
// reporting whether a row changed.
func (r *PaymentRepo) MarkStatus(ctx context.Context, paymentID uint64, from, to model.PaymentStatus, paidAt *time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, paid_at = COALESCE(?, paid_at), updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`,
		to, paidAt, paymentID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
