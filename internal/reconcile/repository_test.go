package reconcile

import (
	"context"
	"sync"

	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/internal/models/order"
	"github.com/podilnyk/monojar/internal/models/payment"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	orders   []order.Order
	payments []payment.Payment
	mu       sync.RWMutex
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) CreateOrder(_ context.Context, o *order.Order) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxID := 0
	for _, item := range m.orders {
		maxID = max(maxID, item.ID)
	}

	stored := *o
	stored.ID = maxID + 1
	m.orders = append(m.orders, stored)

	return stored.ID, nil
}

func (m *mockRepository) GetOrderByID(_ context.Context, id int) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.orders {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) DeleteOrder(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.orders {
		if item.ID == id {
			if item.Status == order.PAID {
				return errs.ErrDataConflict
			}
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *mockRepository) MarkOrderPaid(_ context.Context, orderID, paymentID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.orders {
		if item.ID == orderID {
			if item.Status != order.CREATED {
				return errs.ErrAlreadyFinalized
			}
			m.orders[i].Status = order.PAID
			m.orders[i].PaymentID = &paymentID
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *mockRepository) InsertPaymentIfAbsent(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxID := 0
	for _, item := range m.payments {
		if item.TransactionID == p.TransactionID {
			return nil, nil
		}
		maxID = max(maxID, item.ID)
	}

	stored := *p
	stored.ID = maxID + 1
	m.payments = append(m.payments, stored)

	created := stored
	return &created, nil
}

func (m *mockRepository) GetPaymentByID(_ context.Context, id int) (*payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.payments {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) GetUnlinkedPaymentByFingerprint(_ context.Context, jarID string, amount int64, comment string) (*payment.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.payments {
		if item.JarID == jarID && item.Amount == amount &&
			item.Comment == comment && item.OrderID == nil {
			found := item
			return &found, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) LinkPaymentToOrder(_ context.Context, paymentID, orderID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.payments {
		if item.ID == paymentID {
			if item.OrderID != nil {
				if *item.OrderID == orderID {
					return nil
				}
				return errs.ErrAlreadyLinked
			}
			id := orderID
			m.payments[i].OrderID = &id
			return nil
		}
	}
	return errs.ErrNotFound
}

// mockTxManager runs the unit of work without a real transaction.
type mockTxManager struct{}

func (mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
