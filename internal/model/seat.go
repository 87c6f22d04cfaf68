package model

import "time"

// SeatStatus enumerates the occupancy states of a seat.  A seat may be
// held by at most one order while it is RESERVED or IN_USE; FREE seats
// are open for booking and MAINTENANCE seats are withdrawn from the
// pool entirely.
type SeatStatus string

const (
	SeatFree        SeatStatus = "FREE"
	SeatReserved    SeatStatus = "RESERVED"
	SeatInUse       SeatStatus = "IN_USE"
	SeatMaintenance SeatStatus = "MAINTENANCE"
)

// Occupied reports whether the seat is currently held by an order.
func (s SeatStatus) Occupied() bool {
	return s == SeatReserved || s == SeatInUse
}

// Seat describes a bookable seat in a study room.  Seat state is owned
// by the seat service and must only be mutated through its reserve and
// release operations.
//
// Fields:
//  ID               – primary key identifier.
//  RoomID           – study room to which this seat belongs.
//  SeatNumber       – human-readable seat label within the room.
//  SeatType         – type of seat (STANDARD, WINDOW, VIP).
//  Status           – occupancy state, see SeatStatus.
//  HourlyPriceCents – rental price per hour in cents.
//  Description      – free-form description shown to customers.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Seat struct {
	ID               uint64     // seats.id
	RoomID           uint64     // seats.room_id
	SeatNumber       string     // seats.seat_number
	SeatType         string     // seats.seat_type
	Status           SeatStatus // seats.status
	HourlyPriceCents uint32     // seats.hourly_price_cents
	Description      string     // seats.description
	CreatedAt        time.Time  // seats.created_at
	UpdatedAt        time.Time  // seats.updated_at
}
