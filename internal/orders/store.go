package orders

import (
	"context"

	"github.com/ovenfresh/storefront/internal/catalog"
)

// Store persists order aggregates. WithinOrder runs fn inside one transaction:
// if fn returns an error nothing it did survives, stock decrements included.
type Store interface {
	WithinOrder(ctx context.Context, fn func(tx OrderTx) error) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, s Status) (*Order, error)
	RecordPayment(ctx context.Context, id, paymentRef string) (*Order, error)
}

// OrderTx is the transactional surface the workflow engine drives. Product
// returns the row locked for the remainder of the transaction; ReserveStock is
// the only permitted stock mutation and fails rather than going negative.
type OrderTx interface {
	Product(ctx context.Context, id string) (*catalog.Product, error)
	ReserveStock(ctx context.Context, productID string, qty int) error
	InsertOrder(ctx context.Context, o *Order) error
}
