package oms

import "time"

// Side is the direction of an order.
type Side uint8

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderState tracks the lifecycle of an order.
type OrderState uint8

const (
	StatePending OrderState = iota
	StateAcknowledged
	StatePartiallyFilled
	StateFilled
	StateCancelled
	StateRejected
	StateExpired
)

func (s OrderState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateAcknowledged:
		return "ACKNOWLEDGED"
	case StatePartiallyFilled:
		return "PARTIALLY_FILLED"
	case StateFilled:
		return "FILLED"
	case StateCancelled:
		return "CANCELLED"
	case StateRejected:
		return "REJECTED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderState) IsTerminal() bool {
	switch s {
	case StateFilled, StateCancelled, StateRejected, StateExpired:
		return true
	default:
		return false
	}
}

// EventType is the category of an adapter order event.
type EventType uint8

const (
	EventAck EventType = iota
	EventFill
	EventCancel
	EventReject
)

func (t EventType) String() string {
	switch t {
	case EventAck:
		return "ACK"
	case EventFill:
		return "FILL"
	case EventCancel:
		return "CANCEL"
	case EventReject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// Order is an order request. It is immutable once submitted; a new attempt
// requires a new client order id.
type Order struct {
	ClOrdID  string
	Exchange string
	Symbol   string
	Side     Side
	Qty      float64
	Price    float64
	IsMarket bool
}

// OrderEvent is the message an adapter delivers back to the core whenever
// the exchange reports a state change.
type OrderEvent struct {
	ClOrdID         string
	Exchange        string
	Symbol          string
	Type            EventType
	FillQty         float64
	FillPrice       float64
	Text            string
	ExchangeOrderID string
	TimestampUS     int64
}

// StateInfo is the mutable lifecycle record kept per client order id.
type StateInfo struct {
	Order

	State           OrderState
	FilledQty       float64
	AvgFillPrice    float64
	ExchangeOrderID string
	RejectReason    string
	CreatedTime     time.Time
	LastUpdateTime  time.Time
}

// LeavesQty returns the quantity still open on the order.
func (s StateInfo) LeavesQty() float64 {
	leaves := s.Qty - s.FilledQty
	if leaves < 0 {
		return 0
	}
	return leaves
}
