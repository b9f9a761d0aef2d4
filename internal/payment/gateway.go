package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ovenfresh/storefront/internal/kafka"
	"github.com/ovenfresh/storefront/internal/orders"
)

// CardValidator decides whether a card number is accepted. The default rule
// (test cards start with 4242) is a stand-in for a real gateway and stays
// swappable at this boundary.
type CardValidator func(cardNumber string) bool

func DefaultCardValidator(cardNumber string) bool {
	return strings.HasPrefix(cardNumber, "4242")
}

type Request struct {
	OrderID        string          `json:"orderId"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"paymentMethod"`
	CardNumber     string          `json:"cardNumber"`
	CardholderName string          `json:"cardholderName"`
	ExpiryMonth    string          `json:"expiryMonth"`
	ExpiryYear     string          `json:"expiryYear"`
	CVV            string          `json:"cvv"`
}

type Response struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"` // succeeded | failed
	Message         string `json:"message"`
	OrderID         string `json:"orderId"`
}

type Gateway struct {
	Orders           *orders.Engine
	Accept           CardValidator
	ProducerConfirm  kafkax.Publisher // order.confirmed
	ProducerDeclined kafkax.Publisher // order.payment.failed
	ServiceName      string
}

// Process resolves a mock payment attempt. An accepted card confirms the
// order and records the generated reference; a declined card leaves the order
// untouched. Either way the caller gets a terminal gateway response.
func (g *Gateway) Process(ctx context.Context, req Request) (Response, error) {
	ref := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	accept := g.Accept
	if accept == nil {
		accept = DefaultCardValidator
	}
	if !accept(req.CardNumber) {
		g.publishDeclined(req.OrderID, "invalid card")
		return Response{
			PaymentIntentID: ref,
			Status:          "failed",
			Message:         "Payment failed - invalid card",
			OrderID:         req.OrderID,
		}, nil
	}

	o, err := g.Orders.ConfirmPayment(ctx, req.OrderID, ref)
	if err != nil {
		return Response{}, err
	}
	g.publishConfirmed(o)
	return Response{
		PaymentIntentID: ref,
		Status:          "succeeded",
		Message:         "Payment processed successfully",
		OrderID:         o.ID,
	}, nil
}

func (g *Gateway) publishConfirmed(o *orders.Order) {
	if g.ProducerConfirm == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderConfirmed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      g.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderConfirmedPayload{
			OrderID: o.ID, PaymentRef: o.PaymentRef, TotalAmount: o.TotalAmount,
		}),
	}
	g.ProducerConfirm.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderConfirmed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (g *Gateway) publishDeclined(orderID, reason string) {
	if g.ProducerDeclined == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventPaymentFailed,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      g.ServiceName,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.PaymentFailedPayload{
			OrderID: orderID, Reason: reason,
		}),
	}
	g.ProducerDeclined.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventPaymentFailed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
