package redisx

import "time"

const (
	// Cache of order status: order_status:{order_id} -> {"status":"...","payment_ref":"..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup for event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cache of the available-product listing (invalidated on catalog writes).
	KeyCatalogAvailable = "catalog:available"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLDedup        = 48 * time.Hour
	TTLCatalogCache = 1 * time.Minute
)
