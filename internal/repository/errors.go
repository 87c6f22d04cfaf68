// Package repository defines the persistence stores for seats, orders,
// payments and users, plus the sentinel errors shared across them.
// These sentinel values let services and handlers distinguish failure
// scenarios: a missing row versus a uniqueness conflict versus a plain
// database error.
package repository

import "errors"

// ErrSeatNotFound is returned when a seat lookup yields no rows.
var ErrSeatNotFound = errors.New("seat not found")

// ErrOrderNotFound is returned when an order lookup yields no rows.
var ErrOrderNotFound = errors.New("order not found")

// ErrPaymentNotFound is returned when a payment lookup yields no rows.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrUserNotFound is returned when a user lookup yields no rows.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is already
// taken.
var ErrEmailExists = errors.New("email already exists")
