package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ovenfresh/storefront/internal/catalog"
	kafkax "github.com/ovenfresh/storefront/internal/kafka"
	"github.com/ovenfresh/storefront/internal/orders"
	"github.com/ovenfresh/storefront/internal/redisx"
)

type OrdersHandler struct {
	Engine         *orders.Engine
	Producer       kafkax.Publisher // order.created
	ProducerStatus kafkax.Publisher // order.status.changed
	Redis          *redis.Client
	Service        string
}

type CreateOrderReq struct {
	CustomerName    string            `json:"customerName"`
	CustomerEmail   string            `json:"customerEmail"`
	CustomerPhone   string            `json:"customerPhone"`
	ShippingAddress string            `json:"shippingAddress"`
	PaymentMethod   string            `json:"paymentMethod"`
	Items           []orders.CartItem `json:"items"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (req *CreateOrderReq) validate() error {
	switch {
	case strings.TrimSpace(req.CustomerName) == "":
		return errors.New("customer name is required")
	case !strings.Contains(req.CustomerEmail, "@"):
		return errors.New("valid email is required")
	case strings.TrimSpace(req.CustomerPhone) == "":
		return errors.New("phone is required")
	case strings.TrimSpace(req.ShippingAddress) == "":
		return errors.New("shipping address is required")
	case strings.TrimSpace(req.PaymentMethod) == "":
		return errors.New("payment method is required")
	case len(req.Items) == 0:
		return errors.New("order must contain at least one item")
	}
	return nil
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.CreateOrder(ctx, orders.CustomerInfo{
		Name:            req.CustomerName,
		Email:           req.CustomerEmail,
		Phone:           req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
	}, req.PaymentMethod, req.Items)
	if err != nil {
		var stock *orders.InsufficientStockError
		var qty *orders.InvalidQuantityError
		switch {
		case errors.As(err, &stock):
			writeJSON(w, http.StatusConflict, map[string]string{"error": stock.Error()})
		case errors.Is(err, catalog.ErrProductNotFound), errors.As(err, &qty), errors.Is(err, orders.ErrEmptyCart):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	h.cacheStatus(ctx, o)

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:       o.ID,
			CustomerEmail: o.CustomerEmail,
			Items:         orders.ItemLines(o.Items),
			TotalAmount:   o.TotalAmount,
			Status:        o.Status,
		}),
	}
	h.publish(h.Producer, o.ID, orders.EventOrderCreated, ev)

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	os, err := h.Engine.ListOrders(ctx, r.URL.Query().Get("email"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if os == nil {
		os = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, os)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Engine.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves the lightweight status document, cache first.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(s))
			return
		}
	}

	o, err := h.Engine.GetOrder(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusDoc(o))
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	status := orders.Status(r.URL.Query().Get("status"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Engine.UpdateStatus(ctx, orderID, status)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, orders.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	h.cacheStatus(ctx, o)

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID: o.ID, Status: o.Status,
		}),
	}
	h.publish(h.ProducerStatus, o.ID, orders.EventOrderStatusChanged, ev)

	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) publish(p kafkax.Publisher, orderID, eventType string, ev orders.Envelope) {
	if p == nil {
		return
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func statusDoc(o *orders.Order) map[string]any {
	doc := map[string]any{"status": o.Status}
	if o.PaymentRef != "" {
		doc["payment_ref"] = o.PaymentRef
	}
	return doc
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(statusDoc(o))
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
