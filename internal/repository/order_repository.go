package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coldscholor/shared-room/internal/model"
)

// OrderRepo provides MySQL-backed access to the orders table.  It
// implements OrderStore.  Every state transition is a single UPDATE
// guarded by the expected source status, so two concurrent transitions
// on the same order can never both succeed.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo constructs an OrderRepo with the given DB handle.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, order_no, user_id, seat_id, room_id, start_time, end_time,
	duration_hours, amount_cents, status, pay_method, pay_time, transaction_id,
	cancel_reason, cancel_time, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.OrderNo, &o.UserID, &o.SeatID, &o.RoomID,
		&o.StartTime, &o.EndTime, &o.DurationHours, &o.AmountCents, &o.Status,
		&o.PayMethod, &o.PayTime, &o.TransactionID,
		&o.CancelReason, &o.CancelTime, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts a new order and fills in its generated id and
// creation timestamp.
func (r *OrderRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (order_no, user_id, seat_id, room_id, start_time, end_time,
		   duration_hours, amount_cents, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderNo, order.UserID, order.SeatID, order.RoomID,
		order.StartTime.UTC(), order.EndTime.UTC(),
		order.DurationHours, order.AmountCents, order.Status, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

// GetOrder fetches an order by id.  Returns ErrOrderNotFound when no
// row exists.
func (r *OrderRepo) GetOrder(ctx context.Context, orderID uint64) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// GetOrderByNo fetches an order by its externally visible order number.
func (r *OrderRepo) GetOrderByNo(ctx context.Context, orderNo string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_no = ?`, orderNo)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// ListByUser returns the user's orders, newest first, optionally
// filtered by status.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64, status *model.OrderStatus) ([]model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ?`
	args := []any{userID}
	if status != nil {
		q += ` AND status = ?`
		args = append(args, *status)
	}
	q += ` ORDER BY created_at DESC`
	return r.queryOrders(ctx, q, args...)
}

// ListConflicting returns the user's paid, in-use or completed orders
// whose booked window overlaps [start, end).
func (r *OrderRepo) ListConflicting(ctx context.Context, userID uint64, start, end time.Time) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = ? AND status IN (?, ?, ?)
		   AND start_time < ? AND end_time > ?`,
		userID, model.OrderPaid, model.OrderInUse, model.OrderCompleted,
		end.UTC(), start.UTC())
}

// ListExpiredPending returns PENDING_PAYMENT orders created before the
// cutoff.
func (r *OrderRepo) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = ? AND created_at < ?`,
		model.OrderPendingPayment, cutoff.UTC())
}

func (r *OrderRepo) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// transition runs one guarded status update and reports whether the
// row changed.
func (r *OrderRepo) transition(ctx context.Context, set string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, set, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkPaid drives PENDING_PAYMENT -> PAID, recording the payment
// method, transaction id and timestamp.
func (r *OrderRepo) MarkPaid(ctx context.Context, orderID uint64, method, transactionID string, paidAt time.Time) (bool, error) {
	return r.transition(ctx,
		`UPDATE orders SET status = ?, pay_method = ?, transaction_id = ?, pay_time = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`,
		model.OrderPaid, method, transactionID, paidAt.UTC(), orderID, model.OrderPendingPayment)
}

// MarkCancelled drives PENDING_PAYMENT -> CANCELLED, recording the
// reason and timestamp.
func (r *OrderRepo) MarkCancelled(ctx context.Context, orderID uint64, reason string, at time.Time) (bool, error) {
	return r.transition(ctx,
		`UPDATE orders SET status = ?, cancel_reason = ?, cancel_time = ?, updated_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`,
		model.OrderCancelled, reason, at.UTC(), orderID, model.OrderPendingPayment)
}

// MarkInUse drives PAID -> IN_USE.
func (r *OrderRepo) MarkInUse(ctx context.Context, orderID uint64) (bool, error) {
	return r.transition(ctx,
		`UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		model.OrderInUse, orderID, model.OrderPaid)
}

// MarkCompleted drives IN_USE -> COMPLETED.
func (r *OrderRepo) MarkCompleted(ctx context.Context, orderID uint64) (bool, error) {
	return r.transition(ctx,
		`UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		model.OrderCompleted, orderID, model.OrderInUse)
}

// MarkRefunded drives PAID -> REFUNDED.
func (r *OrderRepo) MarkRefunded(ctx context.Context, orderID uint64) (bool, error) {
	return r.transition(ctx,
		`UPDATE orders SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		model.OrderRefunded, orderID, model.OrderPaid)
}
