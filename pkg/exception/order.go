package exception

import "errors"

var (
	ErrOrderUnknownExchange   = errors.New("order: exchange not registered")
	ErrOrderDuplicate         = errors.New("order: client order id already exists")
	ErrOrderUnknown           = errors.New("order: client order id not found")
	ErrOrderInvalidTransition = errors.New("order: invalid state transition")
	ErrOrderInvalidFill       = errors.New("order: invalid fill quantity")
	ErrOrderInvalidRequest    = errors.New("order: invalid request")
	ErrOrderTerminal          = errors.New("order: already in terminal state")
	ErrOrderQueueFull         = errors.New("order: event queue full")
	ErrOrderQueueClosed       = errors.New("order: event queue closed")
)

var (
	ErrStrategyNoExchange = errors.New("strategy: no exchange registered")
	ErrStrategyEmptyBook  = errors.New("strategy: empty order book")
)
