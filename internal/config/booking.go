package config

import (
	"os"
	"time"
)

// BookingConfig defines the timing knobs of the booking core.
// PaymentWindow is how long an order may stay PENDING_PAYMENT before
// automatic cancellation.  LockWait bounds how long a reservation
// attempt waits for the per-seat lock before failing with contention;
// LockLease bounds lock leakage if a holder crashes mid-operation.
// SweepInterval is the period of the expiration backstop scan, and
// CollaboratorTimeout caps every call into the seat and payment
// collaborators so nothing in the core blocks indefinitely.
type BookingConfig struct {
	PaymentWindow       time.Duration
	LockWait            time.Duration
	LockLease           time.Duration
	SweepInterval       time.Duration
	CollaboratorTimeout time.Duration
	MaxBookingHours     int
}

// LoadBookingConfig reads environment variables to build a
// BookingConfig.  Defaults match the original deployment: a 15 minute
// payment window, a 3 second lock wait and a 10 second lease.
func LoadBookingConfig() BookingConfig {
	def := BookingConfig{
		PaymentWindow:       envDur("BOOKING_PAYMENT_WINDOW", 15*time.Minute),
		LockWait:            envDur("BOOKING_LOCK_WAIT", 3*time.Second),
		LockLease:           envDur("BOOKING_LOCK_LEASE", 10*time.Second),
		SweepInterval:       envDur("BOOKING_SWEEP_INTERVAL", time.Minute),
		CollaboratorTimeout: envDur("BOOKING_COLLABORATOR_TIMEOUT", 5*time.Second),
		MaxBookingHours:     24,
	}
	if def.PaymentWindow <= 0 {
		def.PaymentWindow = 15 * time.Minute
	}
	if def.LockLease < def.LockWait {
		// A lease shorter than the wait bound would let a second caller
		// steal the lock from a live holder.
		def.LockLease = def.LockWait + time.Second
	}
	return def
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
