package orders_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenfresh/storefront/internal/catalog"
	"github.com/ovenfresh/storefront/internal/inmem"
	"github.com/ovenfresh/storefront/internal/orders"
)

func newEngine() (*orders.Engine, *inmem.Store) {
	s := inmem.New()
	return &orders.Engine{Store: s}, s
}

func seedProduct(t *testing.T, s *inmem.Store, name, price string, stock int) catalog.Product {
	t.Helper()
	p := catalog.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		Available: true,
	}
	require.NoError(t, s.Create(context.Background(), &p))
	return p
}

func testCustomer() orders.CustomerInfo {
	return orders.CustomerInfo{
		Name:            "Ada Lovelace",
		Email:           "ada@example.com",
		Phone:           "+44 555 0101",
		ShippingAddress: "12 Analytical St, London",
	}
}

func TestCreateOrderComputesExactTotal(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Chocolate Fudge Cake", "45.99", 20)

	o, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("91.98")),
		"total = %s", o.TotalAmount)
	assert.Equal(t, orders.StatusPending, o.Status)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].UnitPrice.Equal(p.Price))
	assert.True(t, o.Items[0].Subtotal.Equal(decimal.RequireFromString("91.98")))

	got, err := s.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, got.Stock)

	// immediately retrievable, same total
	fetched, err := e.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, fetched.TotalAmount.Equal(o.TotalAmount))
}

func TestCreateOrderTotalIsSumOfSubtotals(t *testing.T) {
	e, s := newEngine()
	a := seedProduct(t, s, "Lemon Drizzle Cake", "35.99", 25)
	b := seedProduct(t, s, "Tiramisu Cake", "52.99", 8)
	c := seedProduct(t, s, "Carrot Cake", "38.99", 12)

	o, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{
			{ProductID: a.ID, Quantity: 3},
			{ProductID: b.ID, Quantity: 1},
			{ProductID: c.ID, Quantity: 2},
		})
	require.NoError(t, err)

	// 3*35.99 + 52.99 + 2*38.99 = 238.94, no floating-point drift
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("238.94")),
		"total = %s", o.TotalAmount)

	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}
	assert.True(t, o.TotalAmount.Equal(sum))
}

func TestCreateOrderPreservesCartOrder(t *testing.T) {
	e, s := newEngine()
	a := seedProduct(t, s, "Black Forest Cake", "48.99", 10)
	b := seedProduct(t, s, "Red Velvet Cake", "42.99", 18)

	o, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{
			{ProductID: b.ID, Quantity: 1},
			{ProductID: a.ID, Quantity: 1},
		})
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, b.ID, o.Items[0].ProductID)
	assert.Equal(t, a.ID, o.Items[1].ProductID)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Tiramisu Cake", "52.99", 3)

	_, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{{ProductID: p.ID, Quantity: 5}})

	var stockErr *orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Tiramisu Cake", stockErr.ProductName)
	assert.Equal(t, 5, stockErr.Required)
	assert.Equal(t, 3, stockErr.Available)

	got, err := s.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock, "failed order must not touch stock")

	os, err := s.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, os, "no order record survives a failed create")
}

func TestCreateOrderRollsBackEarlierReservations(t *testing.T) {
	e, s := newEngine()
	a := seedProduct(t, s, "Carrot Cake", "38.99", 12)
	b := seedProduct(t, s, "Vanilla Birthday Cake", "36.99", 2)

	_, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{
			{ProductID: a.ID, Quantity: 4}, // would reserve fine
			{ProductID: b.ID, Quantity: 5}, // fails
		})
	var stockErr *orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Vanilla Birthday Cake", stockErr.ProductName)

	gotA, err := s.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, gotA.Stock, "reservation for the earlier item must not persist")

	os, _ := s.ListOrders(context.Background())
	assert.Empty(t, os)
}

func TestCreateOrderUnknownProductAborts(t *testing.T) {
	e, s := newEngine()
	a := seedProduct(t, s, "Strawberry Shortcake", "39.99", 15)

	_, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: "no-such-product", Quantity: 1},
		})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)

	gotA, _ := s.GetByID(context.Background(), a.ID)
	assert.Equal(t, 15, gotA.Stock)
}

func TestCreateOrderRejectsBadCarts(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Lemon Drizzle Cake", "35.99", 25)

	_, err := e.CreateOrder(context.Background(), testCustomer(), "card", nil)
	assert.ErrorIs(t, err, orders.ErrEmptyCart)

	_, err = e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{{ProductID: p.ID, Quantity: 0}})
	var qtyErr *orders.InvalidQuantityError
	assert.ErrorAs(t, err, &qtyErr)
}

func TestCreateOrderSameProductTwiceInCart(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Black Forest Cake", "48.99", 3)

	// second line sees the stock already reserved by the first
	_, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{
			{ProductID: p.ID, Quantity: 2},
			{ProductID: p.ID, Quantity: 2},
		})
	var stockErr *orders.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	got, _ := s.GetByID(context.Background(), p.ID)
	assert.Equal(t, 3, got.Stock)
}

func TestConcurrentCreateOrdersLastUnit(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Tiramisu Cake", "52.99", 1)

	const n = 24
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateOrder(context.Background(), testCustomer(), "card",
				[]orders.CartItem{{ProductID: p.ID, Quantity: 1}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, stockFails := 0, 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var stockErr *orders.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		stockFails++
	}
	assert.Equal(t, 1, successes, "exactly one caller wins the last unit")
	assert.Equal(t, n-1, stockFails)

	got, _ := s.GetByID(context.Background(), p.ID)
	assert.Equal(t, 0, got.Stock)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Red Velvet Cake", "42.99", 18)
	o, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	first, err := e.ConfirmPayment(context.Background(), o.ID, "pi_abc123")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, first.Status)
	assert.Equal(t, "pi_abc123", first.PaymentRef)

	second, err := e.ConfirmPayment(context.Background(), o.ID, "pi_abc123")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, second.Status)
	assert.Equal(t, "pi_abc123", second.PaymentRef)

	// stock decremented once, at order time
	got, _ := s.GetByID(context.Background(), p.ID)
	assert.Equal(t, 17, got.Stock)
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	e, _ := newEngine()
	_, err := e.ConfirmPayment(context.Background(), "missing", "pi_x")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestUpdateStatus(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Carrot Cake", "38.99", 12)
	o, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	upd, err := e.UpdateStatus(context.Background(), o.ID, orders.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, upd.Status)

	// overwrite is permissive: an irregular jump is applied, not rejected
	upd, err = e.UpdateStatus(context.Background(), o.ID, orders.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, upd.Status)

	_, err = e.UpdateStatus(context.Background(), "missing", orders.StatusConfirmed)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = e.UpdateStatus(context.Background(), o.ID, orders.Status("SHREDDED"))
	assert.ErrorIs(t, err, orders.ErrInvalidStatus)
}

func TestListOrdersByEmail(t *testing.T) {
	e, s := newEngine()
	p := seedProduct(t, s, "Vanilla Birthday Cake", "36.99", 30)

	_, err := e.CreateOrder(context.Background(), testCustomer(), "card",
		[]orders.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	other := testCustomer()
	other.Email = "grace@example.com"
	second, err := e.CreateOrder(context.Background(), other, "card",
		[]orders.CartItem{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	all, err := e.ListOrders(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	mine, err := e.ListOrders(context.Background(), "grace@example.com")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)
}
