// Package service implements the booking core: the seat lock manager,
// the order state machine with its reservation coordinator, and the
// payment reconciliation gateway.
package service

import "errors"

// Sentinel errors returned by the booking core.  Handlers map these to
// HTTP responses; callers choose their retry strategy by which one they
// get.  Contention may be retried against the same seat, unavailability
// must not be.
var (
	// ErrSeatLockContended means the per-seat lock was not acquired
	// within the wait bound.  Retryable.
	ErrSeatLockContended = errors.New("seat lock contended")

	// ErrSeatUnavailable means the seat exists but is not FREE.  Not
	// retryable against the same seat.
	ErrSeatUnavailable = errors.New("seat not available")

	// ErrInvalidState means the requested transition is illegal for the
	// order's current state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrAmountMismatch means a payment signal declared an amount
	// different from the order's recorded amount.  Always rejected,
	// never silently accepted.
	ErrAmountMismatch = errors.New("payment amount does not match order amount")

	// ErrCollaboratorUnavailable means a seat or payment collaborator
	// call failed or timed out.  The caller's compensation has already
	// run by the time this surfaces.
	ErrCollaboratorUnavailable = errors.New("collaborator call failed or timed out")

	// ErrTimeConflict means the user already holds an active order
	// overlapping the requested window.
	ErrTimeConflict = errors.New("user already holds an overlapping booking")

	// ErrInvalidTimeWindow means the requested start/end pair fails
	// validation.
	ErrInvalidTimeWindow = errors.New("invalid booking time window")

	// ErrNotOrderOwner means the order belongs to another user.
	ErrNotOrderOwner = errors.New("order belongs to another user")

	// ErrOrderExpired means the payment window for the order has
	// already lapsed.
	ErrOrderExpired = errors.New("payment window has lapsed")
)
