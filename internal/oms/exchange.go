package oms

// EventHandler receives asynchronous order events. Adapters invoke it from
// their own execution context; consumers must be safe under concurrent
// delivery from multiple adapters.
type EventHandler func(OrderEvent)

// ExchangeOMS is the contract every concrete exchange adapter implements.
// The core depends only on this interface; wire-level protocol handling
// (framing, signing, auth) lives behind it.
type ExchangeOMS interface {
	// SendOrder accepts the order into the adapter's local queue. A true
	// return is not an exchange acknowledgment; that arrives later as an
	// Ack event.
	SendOrder(order Order) bool
	CancelOrder(clOrdID, exchangeOrderID string) bool
	ModifyOrder(clOrdID, exchangeOrderID string, newPrice, newQty float64) bool

	Connect() bool
	Disconnect()
	IsConnected() bool

	Name() string
	SupportedSymbols() []string

	// SetEventHandler rewires where the adapter emits order events.
	SetEventHandler(handler EventHandler)
}
