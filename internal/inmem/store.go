// Package inmem is a mutex-serialized implementation of the catalog and order
// stores. Tests use it to exercise the workflow engine and HTTP handlers with
// the same all-or-nothing semantics the Postgres repos provide.
package inmem

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ovenfresh/storefront/internal/catalog"
	"github.com/ovenfresh/storefront/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	orders   map[string]orders.Order
	seq      []string // order ids, creation order
}

func New() *Store {
	return &Store{
		products: make(map[string]catalog.Product),
		orders:   make(map[string]orders.Order),
	}
}

// --- orders.Store ---

// WithinOrder holds the store lock for the whole transaction, so concurrent
// reservations serialize exactly like FOR UPDATE row locks. Writes are staged
// and applied only when fn succeeds.
func (s *Store) WithinOrder(ctx context.Context, fn func(tx orders.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &memTx{store: s, reserved: make(map[string]int)}
	if err := fn(t); err != nil {
		return err
	}
	for id, qty := range t.reserved {
		p := s.products[id]
		p.Stock -= qty
		p.UpdatedAt = time.Now().UTC()
		s.products[id] = p
	}
	if t.order != nil {
		s.orders[t.order.ID] = cloneOrder(*t.order)
		s.seq = append(s.seq, t.order.ID)
	}
	return nil
}

type memTx struct {
	store    *Store
	reserved map[string]int
	order    *orders.Order
}

func (t *memTx) Product(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := t.store.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	p.Stock -= t.reserved[id] // staged view
	return &p, nil
}

func (t *memTx) ReserveStock(ctx context.Context, productID string, qty int) error {
	p, ok := t.store.products[productID]
	if !ok {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	}
	avail := p.Stock - t.reserved[productID]
	if avail < qty {
		return &orders.InsufficientStockError{ProductName: p.Name, Required: qty, Available: avail}
	}
	t.reserved[productID] += qty
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	c := cloneOrder(*o)
	t.order = &c
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	c := cloneOrder(o)
	return &c, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return s.listOrders(""), nil
}

func (s *Store) ListOrdersByEmail(ctx context.Context, email string) ([]orders.Order, error) {
	return s.listOrders(email), nil
}

func (s *Store) listOrders(email string) []orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	// newest first
	for i := len(s.seq) - 1; i >= 0; i-- {
		o := s.orders[s.seq[i]]
		if email != "" && o.CustomerEmail != email {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out
}

func (s *Store) UpdateStatus(ctx context.Context, id string, st orders.Status) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	o.Status = st
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	c := cloneOrder(o)
	return &c, nil
}

func (s *Store) RecordPayment(ctx context.Context, id, paymentRef string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	o.PaymentRef = paymentRef
	o.Status = orders.StatusConfirmed
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	c := cloneOrder(o)
	return &c, nil
}

func cloneOrder(o orders.Order) orders.Order {
	items := make([]orders.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// --- catalog store ---

func (s *Store) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	return &p, nil
}

func (s *Store) ListAvailable(ctx context.Context) ([]catalog.Product, error) {
	return s.filter(func(p catalog.Product) bool { return p.Available }), nil
}

func (s *Store) ListByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	return s.filter(func(p catalog.Product) bool {
		return p.Available && p.Category == category
	}), nil
}

func (s *Store) Search(ctx context.Context, term string) ([]catalog.Product, error) {
	t := strings.ToLower(term)
	return s.filter(func(p catalog.Product) bool {
		return p.Available &&
			(strings.Contains(strings.ToLower(p.Name), t) ||
				strings.Contains(strings.ToLower(p.Description), t))
	}), nil
}

func (s *Store) filter(keep func(catalog.Product) bool) []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Product
	for _, p := range s.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) Create(ctx context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	s.products[p.ID] = *p
	return nil
}

func (s *Store) Update(ctx context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, p.ID)
	}
	p.UpdatedAt = time.Now().UTC()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	for _, o := range s.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return fmt.Errorf("%w: %s", catalog.ErrProductReferenced, id)
			}
		}
	}
	delete(s.products, id)
	return nil
}
