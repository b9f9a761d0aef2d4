// Package notify consumes order lifecycle events and keeps the Redis
// status-cache entries in step with what was committed, so status reads stay
// off the database between changes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ovenfresh/storefront/internal/kafka"
	"github.com/ovenfresh/storefront/internal/orders"
	"github.com/ovenfresh/storefront/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderEvent is installed as the consumer handler for every order topic.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event_id; redelivery after a rebalance is expected
	dkey := fmt.Sprintf(redisx.KeyDedup, "notify", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.cacheStatus(ctx, p.OrderID, p.Status, "")
	case orders.EventOrderConfirmed:
		p, err := kafkax.UnwrapPayload[orders.OrderConfirmedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.cacheStatus(ctx, p.OrderID, orders.StatusConfirmed, p.PaymentRef)
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.cacheStatus(ctx, p.OrderID, p.Status, "")
	case orders.EventPaymentFailed:
		p, err := kafkax.UnwrapPayload[orders.PaymentFailedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.Printf("payment failed for order %s: %s", p.OrderID, p.Reason)
		return nil
	default:
		return nil // unknown event types are skipped, not retried
	}
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, st orders.Status, paymentRef string) error {
	doc := map[string]any{"status": st}
	if paymentRef != "" {
		doc["payment_ref"] = paymentRef
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	return s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
