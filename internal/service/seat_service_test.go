package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldscholor/shared-room/internal/config"
	"github.com/coldscholor/shared-room/internal/lock"
	"github.com/coldscholor/shared-room/internal/model"
	"github.com/coldscholor/shared-room/internal/repository"
)

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		PaymentWindow:       15 * time.Minute,
		LockWait:            500 * time.Millisecond,
		LockLease:           2 * time.Second,
		SweepInterval:       time.Minute,
		CollaboratorTimeout: 2 * time.Second,
		MaxBookingHours:     24,
	}
}

func newTestSeatService(t *testing.T) (*SeatService, *repository.MemorySeatStore, uint64) {
	t.Helper()
	seats := repository.NewMemorySeatStore()
	seat := &model.Seat{
		RoomID:           1,
		SeatNumber:       "A1",
		SeatType:         "standard",
		Status:           model.SeatFree,
		HourlyPriceCents: 500,
	}
	require.NoError(t, seats.CreateSeat(context.Background(), seat))
	svc := NewSeatService(seats, lock.NewLocalLock(), nil, testBookingConfig())
	return svc, seats, seat.ID
}

func TestSeatReserveAndRelease(t *testing.T) {
	svc, seats, seatID := newTestSeatService(t)
	ctx := context.Background()

	require.NoError(t, svc.TryReserve(ctx, seatID))

	seat, err := seats.GetSeat(ctx, seatID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatReserved, seat.Status)

	// Reserving a held seat fails without blocking on the lock forever.
	assert.ErrorIs(t, svc.TryReserve(ctx, seatID), ErrSeatUnavailable)

	require.NoError(t, svc.Release(ctx, seatID))
	seat, err = seats.GetSeat(ctx, seatID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatFree, seat.Status)
}

func TestSeatReleaseIdempotent(t *testing.T) {
	svc, _, seatID := newTestSeatService(t)
	ctx := context.Background()

	// Releasing a FREE seat is a no-op, not an error; compensation paths
	// depend on that.
	require.NoError(t, svc.Release(ctx, seatID))
	require.NoError(t, svc.Release(ctx, seatID))
}

func TestSeatReleaseLeavesMaintenanceAlone(t *testing.T) {
	svc, seats, seatID := newTestSeatService(t)
	ctx := context.Background()

	require.NoError(t, seats.SetSeatStatus(ctx, seatID, model.SeatMaintenance))
	require.NoError(t, svc.Release(ctx, seatID))

	seat, err := seats.GetSeat(ctx, seatID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatMaintenance, seat.Status)
}

func TestSeatMarkInUse(t *testing.T) {
	svc, seats, seatID := newTestSeatService(t)
	ctx := context.Background()

	// Not reserved yet.
	assert.ErrorIs(t, svc.MarkInUse(ctx, seatID), ErrInvalidState)

	require.NoError(t, svc.TryReserve(ctx, seatID))
	require.NoError(t, svc.MarkInUse(ctx, seatID))
	// Repeat is a no-op.
	require.NoError(t, svc.MarkInUse(ctx, seatID))

	seat, err := seats.GetSeat(ctx, seatID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatInUse, seat.Status)

	// IN_USE seats release back to FREE at session end.
	require.NoError(t, svc.Release(ctx, seatID))
	seat, err = seats.GetSeat(ctx, seatID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatFree, seat.Status)
}

func TestSeatCheckAvailable(t *testing.T) {
	svc, _, seatID := newTestSeatService(t)
	ctx := context.Background()

	ok, err := svc.CheckAvailable(ctx, seatID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.TryReserve(ctx, seatID))

	ok, err = svc.CheckAvailable(ctx, seatID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.CheckAvailable(ctx, 9999)
	assert.ErrorIs(t, err, repository.ErrSeatNotFound)
}

func TestSeatConcurrentReserveSingleWinner(t *testing.T) {
	svc, _, seatID := newTestSeatService(t)
	ctx := context.Background()

	const attempts = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.TryReserve(ctx, seatID)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			// Everyone else must see a clean domain outcome, not a
			// store-level race.
			if err != ErrSeatUnavailable && err != ErrSeatLockContended {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins, "exactly one reservation may win")
}
