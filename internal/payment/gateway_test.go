package payment_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenfresh/storefront/internal/catalog"
	"github.com/ovenfresh/storefront/internal/inmem"
	"github.com/ovenfresh/storefront/internal/orders"
	"github.com/ovenfresh/storefront/internal/payment"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, value)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func setup(t *testing.T) (*payment.Gateway, *orders.Order, *fakePublisher, *fakePublisher) {
	t.Helper()
	s := inmem.New()
	p := catalog.Product{Name: "Tiramisu Cake", Price: decimal.RequireFromString("52.99"), Stock: 8, Available: true}
	require.NoError(t, s.Create(context.Background(), &p))

	engine := &orders.Engine{Store: s}
	o, err := engine.CreateOrder(context.Background(),
		orders.CustomerInfo{Name: "Ada", Email: "ada@example.com", Phone: "1", ShippingAddress: "x"},
		"card", []orders.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	confirm, declined := &fakePublisher{}, &fakePublisher{}
	gw := &payment.Gateway{
		Orders:           engine,
		ProducerConfirm:  confirm,
		ProducerDeclined: declined,
		ServiceName:      "test-gw",
	}
	return gw, o, confirm, declined
}

func TestProcessAcceptedCardConfirmsOrder(t *testing.T) {
	gw, o, confirm, declined := setup(t)

	resp, err := gw.Process(context.Background(), payment.Request{
		OrderID:    o.ID,
		CardNumber: "4242424242424242",
	})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", resp.Status)
	assert.Equal(t, o.ID, resp.OrderID)
	assert.True(t, strings.HasPrefix(resp.PaymentIntentID, "pi_"))

	confirmed, err := gw.Orders.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, confirmed.Status)
	assert.Equal(t, resp.PaymentIntentID, confirmed.PaymentRef)

	require.Equal(t, 1, confirm.count())
	assert.Equal(t, 0, declined.count())

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(confirm.msgs[0], &env))
	assert.Equal(t, orders.EventOrderConfirmed, env.EventType)
	assert.Equal(t, o.ID, env.CorrelationID)
}

func TestProcessDeclinedCardLeavesOrderPending(t *testing.T) {
	gw, o, confirm, declined := setup(t)

	resp, err := gw.Process(context.Background(), payment.Request{
		OrderID:    o.ID,
		CardNumber: "5555444433332222",
	})
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)
	assert.Contains(t, resp.Message, "invalid card")

	got, err := gw.Orders.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Empty(t, got.PaymentRef)

	assert.Equal(t, 0, confirm.count())
	assert.Equal(t, 1, declined.count())
}

func TestProcessUnknownOrder(t *testing.T) {
	gw, _, _, _ := setup(t)

	_, err := gw.Process(context.Background(), payment.Request{
		OrderID:    "missing",
		CardNumber: "4242424242424242",
	})
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestCustomValidatorWins(t *testing.T) {
	gw, o, _, _ := setup(t)
	gw.Accept = func(string) bool { return true }

	resp, err := gw.Process(context.Background(), payment.Request{OrderID: o.ID, CardNumber: "anything"})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", resp.Status)
}

func TestDefaultCardValidator(t *testing.T) {
	assert.True(t, payment.DefaultCardValidator("4242424242424242"))
	assert.True(t, payment.DefaultCardValidator("4242"))
	assert.False(t, payment.DefaultCardValidator("4241424242424242"))
	assert.False(t, payment.DefaultCardValidator(""))
}
