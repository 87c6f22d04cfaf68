package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldscholor/shared-room/internal/config"
	"github.com/coldscholor/shared-room/internal/lock"
	"github.com/coldscholor/shared-room/internal/model"
	"github.com/coldscholor/shared-room/internal/queue"
	"github.com/coldscholor/shared-room/internal/repository"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	queues []string
}

func (p *recordingPublisher) Publish(_ context.Context, queueName string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues = append(p.queues, queueName)
	return nil
}

func (p *recordingPublisher) published(queueName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, q := range p.queues {
		if q == queueName {
			n++
		}
	}
	return n
}

// countingSeats counts Release calls on the way through to the real
// seat service.
type countingSeats struct {
	SeatManager
	releases atomic.Int32
}

func (c *countingSeats) Release(ctx context.Context, seatID uint64) error {
	c.releases.Add(1)
	return c.SeatManager.Release(ctx, seatID)
}

// failingOrderStore rejects every create to exercise compensation.
type failingOrderStore struct {
	*repository.MemoryOrderStore
}

func (f *failingOrderStore) CreateOrder(context.Context, *model.Order) error {
	return errors.New("db down")
}

type orderEnv struct {
	svc    *OrderService
	orders *repository.MemoryOrderStore
	seats  *repository.MemorySeatStore
	seatID uint64
	events *recordingPublisher
	cfg    config.BookingConfig
}

func newOrderEnv(t *testing.T, cfg config.BookingConfig) *orderEnv {
	t.Helper()
	seats := repository.NewMemorySeatStore()
	seat := &model.Seat{RoomID: 1, SeatNumber: "A1", SeatType: "standard", Status: model.SeatFree, HourlyPriceCents: 500}
	require.NoError(t, seats.CreateSeat(context.Background(), seat))

	orders := repository.NewMemoryOrderStore()
	events := &recordingPublisher{}
	seatSvc := NewSeatService(seats, lock.NewLocalLock(), nil, cfg)
	svc := NewOrderService(orders, seatSvc, events, cfg)
	return &orderEnv{svc: svc, orders: orders, seats: seats, seatID: seat.ID, events: events, cfg: cfg}
}

func futureWindow(hours int) (time.Time, time.Time) {
	start := time.Now().UTC().Add(time.Hour)
	return start, start.Add(time.Duration(hours) * time.Hour)
}

func (e *orderEnv) create(t *testing.T, userID uint64) *model.Order {
	t.Helper()
	start, end := futureWindow(2)
	order, err := e.svc.CreateOrder(context.Background(), userID, CreateOrderInput{
		SeatID: e.seatID, StartTime: start, EndTime: end,
	})
	require.NoError(t, err)
	return order
}

func (e *orderEnv) seatStatus(t *testing.T) model.SeatStatus {
	t.Helper()
	seat, err := e.seats.GetSeat(context.Background(), e.seatID)
	require.NoError(t, err)
	return seat.Status
}

func TestCreateOrder(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	order := env.create(t, 7)

	assert.NotZero(t, order.ID)
	assert.NotEmpty(t, order.OrderNo)
	assert.Equal(t, model.OrderPendingPayment, order.Status)
	assert.Equal(t, 2, order.DurationHours)
	assert.Equal(t, uint32(1000), order.AmountCents, "2 hours at 500 cents")
	assert.Equal(t, model.SeatReserved, env.seatStatus(t))

	assert.Equal(t, 1, env.events.published(queue.OrderCreatedQueue))
	assert.Equal(t, 1, env.events.published(queue.SeatReservedQueue))
}

func TestCreateOrderRejectsBadWindows(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"end before start", now.Add(3 * time.Hour), now.Add(2 * time.Hour)},
		{"start in the past", now.Add(-time.Hour), now.Add(2 * time.Hour)},
		{"under one hour", now.Add(time.Hour), now.Add(time.Hour + 30*time.Minute)},
		{"over the daily cap", now.Add(time.Hour), now.Add(26 * time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateOrder(ctx, 7, CreateOrderInput{SeatID: env.seatID, StartTime: tc.start, EndTime: tc.end})
			assert.ErrorIs(t, err, ErrInvalidTimeWindow)
		})
	}
	// Nothing got reserved along the way.
	assert.Equal(t, model.SeatFree, env.seatStatus(t))
}

func TestCreateOrderSeatTaken(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	env.create(t, 7)

	start, end := futureWindow(2)
	_, err := env.svc.CreateOrder(context.Background(), 8, CreateOrderInput{SeatID: env.seatID, StartTime: start, EndTime: end})
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestCreateOrderTimeConflict(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()

	first := env.create(t, 7)
	won, err := env.orders.MarkPaid(ctx, first.ID, "alipay", "PAYX", time.Now().UTC())
	require.NoError(t, err)
	require.True(t, won)

	// Same user, overlapping window, different seat.
	other := &model.Seat{RoomID: 1, SeatNumber: "A2", SeatType: "standard", Status: model.SeatFree, HourlyPriceCents: 500}
	require.NoError(t, env.seats.CreateSeat(ctx, other))

	_, err = env.svc.CreateOrder(ctx, 7, CreateOrderInput{SeatID: other.ID, StartTime: first.StartTime, EndTime: first.EndTime})
	assert.ErrorIs(t, err, ErrTimeConflict)

	// Another user is free to book the other seat.
	_, err = env.svc.CreateOrder(ctx, 8, CreateOrderInput{SeatID: other.ID, StartTime: first.StartTime, EndTime: first.EndTime})
	assert.NoError(t, err)
}

func TestCreateOrderCompensatesFailedCreate(t *testing.T) {
	cfg := testBookingConfig()
	seats := repository.NewMemorySeatStore()
	seat := &model.Seat{RoomID: 1, SeatNumber: "A1", SeatType: "standard", Status: model.SeatFree, HourlyPriceCents: 500}
	require.NoError(t, seats.CreateSeat(context.Background(), seat))

	seatSvc := NewSeatService(seats, lock.NewLocalLock(), nil, cfg)
	svc := NewOrderService(&failingOrderStore{repository.NewMemoryOrderStore()}, seatSvc, nil, cfg)

	start, end := futureWindow(2)
	_, err := svc.CreateOrder(context.Background(), 7, CreateOrderInput{SeatID: seat.ID, StartTime: start, EndTime: end})
	require.Error(t, err)

	// The seat hold must not outlive the failed order.
	got, err := seats.GetSeat(context.Background(), seat.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatFree, got.Status)
}

func TestCancelOrder(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)

	require.NoError(t, env.svc.Cancel(ctx, order.ID, 7))

	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "user cancel", *got.CancelReason)
	assert.Equal(t, model.SeatFree, env.seatStatus(t))
	assert.Equal(t, 1, env.events.published(queue.OrderCancelledQueue))
	assert.Equal(t, 1, env.events.published(queue.SeatReleasedQueue))

	// Cancelling again is a no-op, and no second release happens.
	require.NoError(t, env.svc.Cancel(ctx, order.ID, 7))
	assert.Equal(t, 1, env.events.published(queue.SeatReleasedQueue))
}

func TestCancelOrderOwnership(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	order := env.create(t, 7)
	assert.ErrorIs(t, env.svc.Cancel(context.Background(), order.ID, 8), ErrNotOrderOwner)
}

func TestCancelPaidOrderRejected(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)
	require.NoError(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", time.Now().UTC()))

	assert.ErrorIs(t, env.svc.Cancel(ctx, order.ID, 7), ErrInvalidState)
	assert.Equal(t, model.SeatReserved, env.seatStatus(t), "paid order keeps its seat")
}

func TestPayOrder(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)
	paidAt := time.Now().UTC()

	require.NoError(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", paidAt))

	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, got.Status)
	require.NotNil(t, got.TransactionID)
	assert.Equal(t, "PAY1", *got.TransactionID)
	require.NotNil(t, got.PayMethod)
	assert.Equal(t, "alipay", *got.PayMethod)
	assert.Equal(t, 1, env.events.published(queue.OrderPaidQueue))

	// A duplicate signal is a silent no-op.
	require.NoError(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", paidAt))
	assert.Equal(t, 1, env.events.published(queue.OrderPaidQueue))
}

func TestPayCancelledOrderRejected(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)
	require.NoError(t, env.svc.Cancel(ctx, order.ID, 7))

	assert.ErrorIs(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", time.Now().UTC()), ErrInvalidState)
}

func TestCheckInAndComplete(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)

	// Not paid yet.
	assert.ErrorIs(t, env.svc.CheckIn(ctx, order.ID, 7), ErrInvalidState)

	require.NoError(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", time.Now().UTC()))
	require.NoError(t, env.svc.CheckIn(ctx, order.ID, 7))
	assert.Equal(t, model.SeatInUse, env.seatStatus(t))

	// Repeat check-in is a no-op.
	require.NoError(t, env.svc.CheckIn(ctx, order.ID, 7))

	require.NoError(t, env.svc.Complete(ctx, order.ID, 7))
	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, got.Status)
	assert.Equal(t, model.SeatFree, env.seatStatus(t))
}

func TestRefund(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)
	require.NoError(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", time.Now().UTC()))

	require.NoError(t, env.svc.Refund(ctx, order.ID, 7))
	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderRefunded, got.Status)
	assert.Equal(t, model.SeatFree, env.seatStatus(t))

	// Idempotent repeat.
	require.NoError(t, env.svc.Refund(ctx, order.ID, 7))
}

func TestRefundPendingRejected(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	order := env.create(t, 7)
	assert.ErrorIs(t, env.svc.Refund(context.Background(), order.ID, 7), ErrInvalidState)
}

func TestCancelExpired(t *testing.T) {
	cfg := testBookingConfig()
	cfg.PaymentWindow = 30 * time.Millisecond
	env := newOrderEnv(t, cfg)
	ctx := context.Background()
	order := env.create(t, 7)

	// Window not lapsed yet: firing early is a no-op.
	require.NoError(t, env.svc.CancelExpired(ctx, order.ID))
	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPendingPayment, got.Status)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, env.svc.CancelExpired(ctx, order.ID))

	got, err = env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "payment timeout", *got.CancelReason)
	assert.Equal(t, model.SeatFree, env.seatStatus(t))
}

func TestCancelExpiredLeavesPaidAlone(t *testing.T) {
	cfg := testBookingConfig()
	cfg.PaymentWindow = 30 * time.Millisecond
	env := newOrderEnv(t, cfg)
	ctx := context.Background()
	order := env.create(t, 7)
	require.NoError(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", time.Now().UTC()))

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, env.svc.CancelExpired(ctx, order.ID))

	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, got.Status)
	assert.Equal(t, model.SeatReserved, env.seatStatus(t))
}

func TestSweepExpiredOnce(t *testing.T) {
	cfg := testBookingConfig()
	cfg.PaymentWindow = 30 * time.Millisecond
	env := newOrderEnv(t, cfg)
	ctx := context.Background()

	expiredOrder := env.create(t, 7)

	// A second seat with a paid order that must survive the sweep.
	other := &model.Seat{RoomID: 1, SeatNumber: "A2", SeatType: "standard", Status: model.SeatFree, HourlyPriceCents: 500}
	require.NoError(t, env.seats.CreateSeat(ctx, other))
	start, end := futureWindow(2)
	paidOrder, err := env.svc.CreateOrder(ctx, 8, CreateOrderInput{SeatID: other.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)
	require.NoError(t, env.svc.Pay(ctx, paidOrder.ID, "alipay", "PAY1", time.Now().UTC()))

	time.Sleep(50 * time.Millisecond)
	n, err := env.svc.SweepExpiredOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.orders.GetOrder(ctx, expiredOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.Status)

	got, err = env.orders.GetOrder(ctx, paidOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, got.Status)
}

// A user cancel and the expiry may fire at the same moment; the
// compare-and-set transition must let exactly one through, and the seat
// must be released exactly once.
func TestCancelRaceReleasesSeatOnce(t *testing.T) {
	cfg := testBookingConfig()
	cfg.PaymentWindow = 20 * time.Millisecond

	seats := repository.NewMemorySeatStore()
	seat := &model.Seat{RoomID: 1, SeatNumber: "A1", SeatType: "standard", Status: model.SeatFree, HourlyPriceCents: 500}
	require.NoError(t, seats.CreateSeat(context.Background(), seat))

	orders := repository.NewMemoryOrderStore()
	counting := &countingSeats{SeatManager: NewSeatService(seats, lock.NewLocalLock(), nil, cfg)}
	svc := NewOrderService(orders, counting, nil, cfg)

	ctx := context.Background()
	start, end := futureWindow(2)
	order, err := svc.CreateOrder(ctx, 7, CreateOrderInput{SeatID: seat.ID, StartTime: start, EndTime: end})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = svc.Cancel(ctx, order.ID, 7)
	}()
	go func() {
		defer wg.Done()
		_ = svc.CancelExpired(ctx, order.ID)
	}()
	wg.Wait()

	got, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.Status)
	assert.Equal(t, int32(1), counting.releases.Load(), "seat released exactly once")

	final, err := seats.GetSeat(ctx, seat.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SeatFree, final.Status)
}

// Payment success and expiry racing over the same order: one guarded
// transition wins, the loser observes the terminal state.
func TestPayVsExpireRace(t *testing.T) {
	cfg := testBookingConfig()
	cfg.PaymentWindow = 20 * time.Millisecond
	env := newOrderEnv(t, cfg)
	ctx := context.Background()
	order := env.create(t, 7)

	time.Sleep(40 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = env.svc.Pay(ctx, order.ID, "alipay", "PAY1", time.Now().UTC())
	}()
	go func() {
		defer wg.Done()
		_ = env.svc.CancelExpired(ctx, order.ID)
	}()
	wg.Wait()

	got, err := env.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	switch got.Status {
	case model.OrderPaid:
		assert.Equal(t, model.SeatReserved, env.seatStatus(t))
	case model.OrderCancelled:
		assert.Equal(t, model.SeatFree, env.seatStatus(t))
	default:
		t.Fatalf("order ended in unexpected status %s", got.Status)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)

	got, err := env.svc.GetOrder(ctx, order.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = env.svc.GetOrder(ctx, order.ID, 8)
	assert.ErrorIs(t, err, ErrNotOrderOwner)

	byNo, err := env.svc.GetOrderByNo(ctx, order.OrderNo, 7)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNo.ID)

	_, err = env.svc.GetOrder(ctx, 9999, 7)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestListOrdersByStatus(t *testing.T) {
	env := newOrderEnv(t, testBookingConfig())
	ctx := context.Background()
	order := env.create(t, 7)
	require.NoError(t, env.svc.Pay(ctx, order.ID, "alipay", "PAY1", time.Now().UTC()))

	paid := model.OrderPaid
	list, err := env.svc.ListOrders(ctx, 7, &paid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)

	pending := model.OrderPendingPayment
	list, err = env.svc.ListOrders(ctx, 7, &pending)
	require.NoError(t, err)
	assert.Empty(t, list)
}
