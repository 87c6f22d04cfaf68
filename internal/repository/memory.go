package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coldscholor/shared-room/internal/model"
)

// MemorySeatStore is an in-memory SeatStore used by tests and the
// single-node dev mode.  All methods copy records in and out so callers
// never share memory with the store.
type MemorySeatStore struct {
	mu     sync.RWMutex
	nextID uint64
	seats  map[uint64]model.Seat
}

// NewMemorySeatStore returns an empty MemorySeatStore.
func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{nextID: 1, seats: make(map[uint64]model.Seat)}
}

func (s *MemorySeatStore) GetSeat(_ context.Context, seatID uint64) (*model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[seatID]
	if !ok {
		return nil, ErrSeatNotFound
	}
	return &seat, nil
}

func (s *MemorySeatStore) SetSeatStatus(_ context.Context, seatID uint64, status model.SeatStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[seatID]
	if !ok {
		return ErrSeatNotFound
	}
	seat.Status = status
	seat.UpdatedAt = time.Now().UTC()
	s.seats[seatID] = seat
	return nil
}

func (s *MemorySeatStore) ListAvailableByRoom(_ context.Context, roomID uint64) ([]model.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Seat
	for _, seat := range s.seats {
		if seat.RoomID == roomID && seat.Status == model.SeatFree {
			out = append(out, seat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (s *MemorySeatStore) CreateSeat(_ context.Context, seat *model.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	seat.CreatedAt = now
	seat.UpdatedAt = now
	s.seats[seat.ID] = *seat
	return nil
}

// MemoryOrderStore is an in-memory OrderStore.  Its Mark* methods honor
// the same compare-and-set contract as the MySQL implementation: the
// status check and the write happen under one mutex hold, so exactly
// one of two racing transitions succeeds.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	nextID uint64
	orders map[uint64]model.Order
}

// NewMemoryOrderStore returns an empty MemoryOrderStore.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{nextID: 1, orders: make(map[uint64]model.Order)}
}

func (s *MemoryOrderStore) CreateOrder(_ context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	s.orders[order.ID] = *order
	return nil
}

func (s *MemoryOrderStore) GetOrder(_ context.Context, orderID uint64) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (s *MemoryOrderStore) GetOrderByNo(_ context.Context, orderNo string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.OrderNo == orderNo {
			o := o
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (s *MemoryOrderStore) ListByUser(_ context.Context, userID uint64, status *model.OrderStatus) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryOrderStore) ListConflicting(_ context.Context, userID uint64, start, end time.Time) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.UserID == userID && o.Status.ConflictSource() && o.Overlaps(start, end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *MemoryOrderStore) ListExpiredPending(_ context.Context, cutoff time.Time) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.Status == model.OrderPendingPayment && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

// mark applies mut to the order only when it is still in the from
// status.
func (s *MemoryOrderStore) mark(orderID uint64, from model.OrderStatus, mut func(*model.Order)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	mut(&o)
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return true, nil
}

func (s *MemoryOrderStore) MarkPaid(_ context.Context, orderID uint64, method, transactionID string, paidAt time.Time) (bool, error) {
	return s.mark(orderID, model.OrderPendingPayment, func(o *model.Order) {
		o.Status = model.OrderPaid
		o.PayMethod = &method
		o.TransactionID = &transactionID
		t := paidAt.UTC()
		o.PayTime = &t
	})
}

func (s *MemoryOrderStore) MarkCancelled(_ context.Context, orderID uint64, reason string, at time.Time) (bool, error) {
	return s.mark(orderID, model.OrderPendingPayment, func(o *model.Order) {
		o.Status = model.OrderCancelled
		o.CancelReason = &reason
		t := at.UTC()
		o.CancelTime = &t
	})
}

func (s *MemoryOrderStore) MarkInUse(_ context.Context, orderID uint64) (bool, error) {
	return s.mark(orderID, model.OrderPaid, func(o *model.Order) { o.Status = model.OrderInUse })
}

func (s *MemoryOrderStore) MarkCompleted(_ context.Context, orderID uint64) (bool, error) {
	return s.mark(orderID, model.OrderInUse, func(o *model.Order) { o.Status = model.OrderCompleted })
}

func (s *MemoryOrderStore) MarkRefunded(_ context.Context, orderID uint64) (bool, error) {
	return s.mark(orderID, model.OrderPaid, func(o *model.Order) { o.Status = model.OrderRefunded })
}

// MemoryPaymentStore is an in-memory PaymentStore.
type MemoryPaymentStore struct {
	mu       sync.RWMutex
	nextID   uint64
	payments map[uint64]model.Payment
}

// NewMemoryPaymentStore returns an empty MemoryPaymentStore.
func NewMemoryPaymentStore() *MemoryPaymentStore {
	return &MemoryPaymentStore{nextID: 1, payments: make(map[uint64]model.Payment)}
}

func (s *MemoryPaymentStore) CreatePayment(_ context.Context, payment *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payment.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	s.payments[payment.ID] = *payment
	return nil
}

func (s *MemoryPaymentStore) GetByTransactionID(_ context.Context, transactionID string) (*model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.TransactionID == transactionID {
			p := p
			return &p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *MemoryPaymentStore) GetPendingByOrder(_ context.Context, orderID uint64) (*model.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.Payment
	for _, p := range s.payments {
		if p.OrderID == orderID && p.Status == model.PaymentPending {
			p := p
			if found == nil || p.CreatedAt.Before(found.CreatedAt) {
				found = &p
			}
		}
	}
	if found == nil {
		return nil, ErrPaymentNotFound
	}
	return found, nil
}

func (s *MemoryPaymentStore) MarkStatus(_ context.Context, paymentID uint64, from, to model.PaymentStatus, paidAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if paidAt != nil {
		t := paidAt.UTC()
		p.PaidAt = &t
	}
	p.UpdatedAt = time.Now().UTC()
	s.payments[paymentID] = p
	return true, nil
}

// MemoryUserStore is an in-memory UserStore.
type MemoryUserStore struct {
	mu     sync.RWMutex
	nextID uint64
	users  map[string]model.User // keyed by email
}

// NewMemoryUserStore returns an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{nextID: 1, users: make(map[string]model.User)}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, email, passwordHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return 0, ErrEmailExists
	}
	id := s.nextID
	s.nextID++
	s.users[email] = model.User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	return id, nil
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
