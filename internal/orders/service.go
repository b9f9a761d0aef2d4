package orders

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine runs the order workflow: validate the cart against the catalog,
// price it, reserve stock and persist the aggregate as one unit of work.
type Engine struct {
	Store Store
}

// CreateOrder walks the cart in input order. The first unknown product or
// short stock aborts the whole call; the surrounding transaction discards any
// reservations already made for earlier items.
func (e *Engine) CreateOrder(ctx context.Context, cust CustomerInfo, paymentMethod string, cart []CartItem) (*Order, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		CustomerName:    cust.Name,
		CustomerEmail:   cust.Email,
		CustomerPhone:   cust.Phone,
		ShippingAddress: cust.ShippingAddress,
		PaymentMethod:   paymentMethod,
		TotalAmount:     decimal.Zero,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := e.Store.WithinOrder(ctx, func(tx OrderTx) error {
		total := decimal.Zero
		for _, ci := range cart {
			if ci.Quantity < 1 {
				return &InvalidQuantityError{ProductID: ci.ProductID, Quantity: ci.Quantity}
			}
			p, err := tx.Product(ctx, ci.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < ci.Quantity {
				return &InsufficientStockError{ProductName: p.Name, Required: ci.Quantity, Available: p.Stock}
			}

			subtotal := p.Price.Mul(decimal.NewFromInt(int64(ci.Quantity)))
			o.Items = append(o.Items, OrderItem{
				ID:          uuid.NewString(),
				OrderID:     o.ID,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    ci.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    subtotal,
			})
			total = total.Add(subtotal)

			if err := tx.ReserveStock(ctx, p.ID, ci.Quantity); err != nil {
				return err
			}
		}
		o.TotalAmount = total
		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (e *Engine) GetOrder(ctx context.Context, id string) (*Order, error) {
	return e.Store.GetOrder(ctx, id)
}

func (e *Engine) ListOrders(ctx context.Context, email string) ([]Order, error) {
	if email != "" {
		return e.Store.ListOrdersByEmail(ctx, email)
	}
	return e.Store.ListOrders(ctx)
}

// UpdateStatus overwrites unconditionally. The transition table is only
// consulted to log irregular jumps (e.g. DELIVERED back to PENDING).
func (e *Engine) UpdateStatus(ctx context.Context, id string, s Status) (*Order, error) {
	if !ValidStatus(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	prev, err := e.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev.Status != s && !CanTransition(prev.Status, s) {
		log.Printf("order %s: irregular status transition %s -> %s", id, prev.Status, s)
	}
	return e.Store.UpdateStatus(ctx, id, s)
}

// ConfirmPayment records the payment reference and moves the order to
// CONFIRMED regardless of prior status. Repeating the call with the same
// reference is a no-op in effect.
func (e *Engine) ConfirmPayment(ctx context.Context, id, paymentRef string) (*Order, error) {
	return e.Store.RecordPayment(ctx, id, paymentRef)
}
