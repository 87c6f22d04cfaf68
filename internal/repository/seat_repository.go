package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coldscholor/shared-room/internal/model"
)

// SeatRepo provides MySQL-backed access to the seats table.  It
// implements SeatStore.  All timestamps are stored and compared in UTC.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatColumns = `id, room_id, seat_number, seat_type, status, hourly_price_cents, description, created_at, updated_at`

func scanSeat(row interface{ Scan(...any) error }) (*model.Seat, error) {
	var s model.Seat
	err := row.Scan(&s.ID, &s.RoomID, &s.SeatNumber, &s.SeatType, &s.Status,
		&s.HourlyPriceCents, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSeat fetches a single seat by id.  Returns ErrSeatNotFound when no
// row exists.
func (r *SeatRepo) GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE id = ?`, seatID)
	s, err := scanSeat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeatNotFound
	}
	return s, err
}

// SetSeatStatus writes the seat's occupancy state.  Callers hold the
// per-seat lock, so no status guard is needed here.
func (r *SeatRepo) SetSeatStatus(ctx context.Context, seatID uint64, status model.SeatStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE seats SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		status, seatID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		// RowsAffected is 0 both for a missing seat and for a write of
		// the current value; distinguish with a lookup.
		if _, gerr := r.GetSeat(ctx, seatID); gerr != nil {
			return gerr
		}
	}
	return err
}

// ListAvailableByRoom returns all FREE seats in a room ordered by seat
// number.
func (r *SeatRepo) ListAvailableByRoom(ctx context.Context, roomID uint64) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE room_id = ? AND status = ? ORDER BY seat_number`,
		roomID, model.SeatFree)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

// CreateSeat inserts a new seat and fills in its generated id.
func (r *SeatRepo) CreateSeat(ctx context.Context, seat *model.Seat) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO seats (room_id, seat_number, seat_type, status, hourly_price_cents, description)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		seat.RoomID, seat.SeatNumber, seat.SeatType, seat.Status, seat.HourlyPriceCents, seat.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	seat.ID = uint64(id)
	return nil
}
