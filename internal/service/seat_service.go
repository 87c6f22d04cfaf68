package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coldscholor/shared-room/internal/config"
	"github.com/coldscholor/shared-room/internal/lock"
	"github.com/coldscholor/shared-room/internal/model"
	"github.com/coldscholor/shared-room/internal/repository"
)

// seatStatusTTL bounds how long a cached seat status may go stale after
// a missed invalidation.
const seatStatusTTL = 30 * time.Minute

// SeatService owns all seat status transitions.  Every mutation runs
// under the per-seat lock, so two requests for the same seat are
// serialized while requests for different seats proceed in parallel.
type SeatService struct {
	seats repository.SeatStore
	locks lock.SeatLock
	cache *redis.Client // optional; nil disables the status cache
	wait  time.Duration
	lease time.Duration
}

func NewSeatService(seats repository.SeatStore, locks lock.SeatLock, cache *redis.Client, cfg config.BookingConfig) *SeatService {
	return &SeatService{
		seats: seats,
		locks: locks,
		cache: cache,
		wait:  cfg.LockWait,
		lease: cfg.LockLease,
	}
}

func seatLockKey(seatID uint64) string {
	return "seat:" + strconv.FormatUint(seatID, 10)
}

func seatStatusKey(seatID uint64) string {
	return "seat:status:" + strconv.FormatUint(seatID, 10)
}

// withSeatLock runs fn while holding the lock for seatID.  The lease is
// released on return; if the process dies mid-critical-section the TTL
// frees the lock for the next holder.
func (s *SeatService) withSeatLock(ctx context.Context, seatID uint64, fn func() error) error {
	lease, err := s.locks.TryAcquire(ctx, seatLockKey(seatID), s.wait, s.lease)
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrSeatLockContended
	}
	if err != nil {
		return fmt.Errorf("acquire seat lock: %w", err)
	}
	defer func() {
		if rerr := s.locks.Release(context.WithoutCancel(ctx), lease); rerr != nil && !errors.Is(rerr, lock.ErrNotOwned) {
			log.Printf("seat %d: lock release failed: %v", seatID, rerr)
		}
	}()
	return fn()
}

// TryReserve transitions a FREE seat to RESERVED.  Returns
// ErrSeatUnavailable when the seat is held or under maintenance, and
// ErrSeatLockContended when the lock could not be acquired in time.
func (s *SeatService) TryReserve(ctx context.Context, seatID uint64) error {
	return s.withSeatLock(ctx, seatID, func() error {
		seat, err := s.seats.GetSeat(ctx, seatID)
		if err != nil {
			return err
		}
		if seat.Status != model.SeatFree {
			return ErrSeatUnavailable
		}
		if err := s.seats.SetSeatStatus(ctx, seatID, model.SeatReserved); err != nil {
			return err
		}
		s.cacheStatus(ctx, seatID, model.SeatReserved)
		return nil
	})
}

// Release returns a RESERVED or IN_USE seat to FREE.  Releasing a seat
// that is already FREE is a no-op, so compensation paths and guarded
// transitions may call it without first checking state.  Seats under
// maintenance are left alone.
func (s *SeatService) Release(ctx context.Context, seatID uint64) error {
	return s.withSeatLock(ctx, seatID, func() error {
		seat, err := s.seats.GetSeat(ctx, seatID)
		if err != nil {
			return err
		}
		if !seat.Status.Occupied() {
			return nil
		}
		if err := s.seats.SetSeatStatus(ctx, seatID, model.SeatFree); err != nil {
			return err
		}
		s.cacheStatus(ctx, seatID, model.SeatFree)
		return nil
	})
}

// MarkInUse transitions a RESERVED seat to IN_USE at check-in time.
func (s *SeatService) MarkInUse(ctx context.Context, seatID uint64) error {
	return s.withSeatLock(ctx, seatID, func() error {
		seat, err := s.seats.GetSeat(ctx, seatID)
		if err != nil {
			return err
		}
		if seat.Status == model.SeatInUse {
			return nil
		}
		if seat.Status != model.SeatReserved {
			return ErrInvalidState
		}
		if err := s.seats.SetSeatStatus(ctx, seatID, model.SeatInUse); err != nil {
			return err
		}
		s.cacheStatus(ctx, seatID, model.SeatInUse)
		return nil
	})
}

// CheckAvailable reports whether the seat is currently FREE.  Reads go
// through the status cache when one is configured; the answer is
// advisory only, TryReserve re-checks under the lock.
func (s *SeatService) CheckAvailable(ctx context.Context, seatID uint64) (bool, error) {
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, seatStatusKey(seatID)).Result(); err == nil {
			return model.SeatStatus(v) == model.SeatFree, nil
		}
	}
	seat, err := s.seats.GetSeat(ctx, seatID)
	if err != nil {
		return false, err
	}
	s.cacheStatus(ctx, seatID, seat.Status)
	return seat.Status == model.SeatFree, nil
}

// GetSeat returns the seat row, bypassing the cache.
func (s *SeatService) GetSeat(ctx context.Context, seatID uint64) (*model.Seat, error) {
	return s.seats.GetSeat(ctx, seatID)
}

// ListAvailable returns the FREE seats of a room.
func (s *SeatService) ListAvailable(ctx context.Context, roomID uint64) ([]model.Seat, error) {
	return s.seats.ListAvailableByRoom(ctx, roomID)
}

// cacheStatus is best effort; a write failure only costs a cache miss.
func (s *SeatService) cacheStatus(ctx context.Context, seatID uint64, st model.SeatStatus) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, seatStatusKey(seatID), string(st), seatStatusTTL).Err(); err != nil {
		log.Printf("seat %d: status cache write failed: %v", seatID, err)
	}
}
