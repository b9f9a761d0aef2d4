package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderConfirmed     = "order.confirmed"
	TopicOrderStatusChanged = "order.status.changed"
	TopicPaymentFailed      = "order.payment.failed"
)

// Partition key = order_id, so all events for one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
