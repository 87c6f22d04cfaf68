// Package scheduler cancels orders whose payment window lapsed.  Two
// mechanisms cooperate: a per-order timer armed at creation for prompt
// cancellation, and a periodic sweep that catches orders whose timer
// was lost to a restart.  Both funnel into the same guarded transition,
// so firing against an order that was paid or cancelled in the
// meantime is harmless.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coldscholor/shared-room/internal/config"
)

// OrderExpirer is the order-side hook the scheduler drives.
// Implemented by service.OrderService.
type OrderExpirer interface {
	CancelExpired(ctx context.Context, orderID uint64) error
	SweepExpiredOnce(ctx context.Context) (int, error)
}

// ExpirationScheduler owns the payment-deadline timers and the sweep
// loop.
type ExpirationScheduler struct {
	orders OrderExpirer
	window time.Duration
	every  time.Duration

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	stopped bool

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(orders OrderExpirer, cfg config.BookingConfig) *ExpirationScheduler {
	return &ExpirationScheduler{
		orders: orders,
		window: cfg.PaymentWindow,
		every:  cfg.SweepInterval,
		timers: make(map[uint64]*time.Timer),
		stop:   make(chan struct{}),
	}
}

// Start launches the sweep loop.  One initial sweep runs immediately to
// clear anything that expired while the process was down.
func (s *ExpirationScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep()
		ticker := time.NewTicker(s.every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and discards pending timers.  Unfired
// deadlines are not lost: the next process's initial sweep picks them
// up.
func (s *ExpirationScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	close(s.stop)
	s.wg.Wait()
}

// Arm schedules the payment-deadline timer for an order.  Arming the
// same order again replaces the previous timer.
func (s *ExpirationScheduler) Arm(orderID uint64, createdAt time.Time) {
	delay := s.window - time.Since(createdAt)
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.timers[orderID]; ok {
		prev.Stop()
	}
	s.timers[orderID] = time.AfterFunc(delay, func() { s.fire(orderID) })
}

func (s *ExpirationScheduler) fire(orderID uint64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, orderID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.orders.CancelExpired(ctx, orderID); err != nil {
		// The sweep retries it on the next pass.
		log.Printf("expiry timer: cancel order %d failed: %v", orderID, err)
	}
}

func (s *ExpirationScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.orders.SweepExpiredOnce(ctx)
	if err != nil {
		log.Printf("expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("expiry sweep cancelled %d order(s)", n)
	}
}
