package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopcore/checkout-service/internal/domain"
	"github.com/shopcore/checkout-service/internal/repository"
)

// memStore is an in-memory Store so the engine can be exercised without
// postgres. failOn names a store method that should fail mid-transaction,
// for atomicity tests.
type memStore struct {
	products map[int64]domain.Product
	carts    map[int64][]domain.CartLine
	orders   map[int64]*domain.Order
	nextID   int64
	failOn   string
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]domain.Product),
		carts:    make(map[int64][]domain.CartLine),
		orders:   make(map[int64]*domain.Order),
	}
}

func (s *memStore) fail(op string) error {
	if s.failOn == op {
		return fmt.Errorf("injected %s failure", op)
	}
	return nil
}

func (s *memStore) LockCartLines(_ context.Context, userID int64) ([]domain.CartLine, error) {
	if err := s.fail("LockCartLines"); err != nil {
		return nil, err
	}
	lines := append([]domain.CartLine(nil), s.carts[userID]...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (s *memStore) LockProducts(_ context.Context, productIDs []int64) (map[int64]domain.Product, error) {
	if err := s.fail("LockProducts"); err != nil {
		return nil, err
	}
	products := make(map[int64]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok {
			products[id] = p
		}
	}
	return products, nil
}

func (s *memStore) CreateOrder(_ context.Context, order *domain.Order) error {
	if err := s.fail("CreateOrder"); err != nil {
		return err
	}
	s.nextID++
	order.ID = s.nextID
	order.CreatedAt = time.Now()

	header := *order
	header.Lines = nil
	s.orders[order.ID] = &header
	return nil
}

func (s *memStore) AddOrderLines(_ context.Context, orderID int64, lines []domain.OrderLine) error {
	if err := s.fail("AddOrderLines"); err != nil {
		return err
	}
	stored, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d does not exist", orderID)
	}
	for i := range lines {
		s.nextID++
		lines[i].ID = s.nextID
		lines[i].OrderID = orderID
	}
	stored.Lines = append([]domain.OrderLine(nil), lines...)
	return nil
}

func (s *memStore) DecrementStock(_ context.Context, productID int64, quantity int) error {
	if err := s.fail("DecrementStock"); err != nil {
		return err
	}
	p, ok := s.products[productID]
	if !ok {
		return fmt.Errorf("product %d does not exist", productID)
	}
	if p.StockQuantity < quantity {
		return fmt.Errorf("stock underflow guard tripped for product %d", productID)
	}
	p.StockQuantity -= quantity
	s.products[productID] = p
	return nil
}

func (s *memStore) ClearCart(_ context.Context, userID int64) error {
	if err := s.fail("ClearCart"); err != nil {
		return err
	}
	delete(s.carts, userID)
	return nil
}

func (s *memStore) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *memStore) clone() *memStore {
	c := &memStore{
		products: make(map[int64]domain.Product, len(s.products)),
		carts:    make(map[int64][]domain.CartLine, len(s.carts)),
		orders:   make(map[int64]*domain.Order, len(s.orders)),
		nextID:   s.nextID,
		failOn:   s.failOn,
	}
	for id, p := range s.products {
		c.products[id] = p
	}
	for userID, lines := range s.carts {
		c.carts[userID] = append([]domain.CartLine(nil), lines...)
	}
	for id, o := range s.orders {
		c.orders[id] = cloneOrder(o)
	}
	return c
}

func (s *memStore) restore(from *memStore) {
	s.products = from.products
	s.carts = from.carts
	s.orders = from.orders
	s.nextID = from.nextID
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &c
}

// memTxManager serializes transactions the way overlapping row locks do:
// the second transaction waits for the first to finish and then observes its
// committed state. A returned error restores the pre-transaction snapshot.
type memTxManager struct {
	mu    sync.Mutex
	store *memStore
}

func (m *memTxManager) InTx(ctx context.Context, fn func(ctx context.Context, store repository.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.store.clone()
	if err := fn(ctx, m.store); err != nil {
		m.store.restore(snapshot)
		return err
	}
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	orderIDs []int64
}

func (n *recordingNotifier) Enqueue(orderID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orderIDs = append(n.orderIDs, orderID)
}

func (n *recordingNotifier) enqueued() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.orderIDs...)
}
