package oms

import (
	"sync"
	"time"

	"main/pkg/exception"
)

// qtyEpsilon absorbs float rounding when comparing filled quantity
// against order quantity.
const qtyEpsilon = 1e-9

// Table keeps exactly one StateInfo per live client order id and applies
// adapter events to it under the state machine rules.
type Table struct {
	mu     sync.Mutex
	orders map[string]*StateInfo
}

// NewTable creates an empty order table.
func NewTable() *Table {
	return &Table{orders: make(map[string]*StateInfo)}
}

// Track inserts a new order in Pending state.
func (t *Table) Track(order Order) error {
	if order.ClOrdID == "" || order.Qty <= 0 {
		return exception.ErrOrderInvalidRequest
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.orders[order.ClOrdID]; ok {
		return exception.ErrOrderDuplicate
	}

	now := time.Now().UTC()
	t.orders[order.ClOrdID] = &StateInfo{
		Order:          order,
		State:          StatePending,
		CreatedTime:    now,
		LastUpdateTime: now,
	}
	return nil
}

// Apply drives the tracked order forward from an adapter event. The event
// is dropped, with the state untouched, when it would cross a disallowed
// edge or report an impossible fill.
func (t *Table) Apply(ev OrderEvent) (StateInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.orders[ev.ClOrdID]
	if !ok {
		return StateInfo{}, exception.ErrOrderUnknown
	}

	next, err := t.nextState(info, ev)
	if err != nil {
		return *info, err
	}
	if !IsValidTransition(info.State, next) {
		return *info, exception.ErrOrderInvalidTransition
	}

	switch ev.Type {
	case EventAck:
		if info.ExchangeOrderID == "" {
			info.ExchangeOrderID = ev.ExchangeOrderID
		}
	case EventFill:
		filled := info.FilledQty + ev.FillQty
		info.AvgFillPrice = (info.AvgFillPrice*info.FilledQty + ev.FillPrice*ev.FillQty) / filled
		info.FilledQty = filled
	case EventReject:
		info.RejectReason = ev.Text
	}

	info.State = next
	info.LastUpdateTime = time.Now().UTC()
	return *info, nil
}

// nextState maps an event onto the target state. Fill events resolve to
// PartiallyFilled or Filled depending on the cumulative quantity.
func (t *Table) nextState(info *StateInfo, ev OrderEvent) (OrderState, error) {
	switch ev.Type {
	case EventAck:
		return StateAcknowledged, nil
	case EventFill:
		if ev.FillQty <= 0 {
			return info.State, exception.ErrOrderInvalidFill
		}
		filled := info.FilledQty + ev.FillQty
		if filled > info.Qty+qtyEpsilon {
			return info.State, exception.ErrOrderInvalidFill
		}
		if filled >= info.Qty-qtyEpsilon {
			return StateFilled, nil
		}
		return StatePartiallyFilled, nil
	case EventCancel:
		return StateCancelled, nil
	case EventReject:
		return StateRejected, nil
	default:
		return info.State, exception.ErrOrderInvalidRequest
	}
}

// Expire marks a tracked order Expired when the transition table allows it.
func (t *Table) Expire(clOrdID string) (StateInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.orders[clOrdID]
	if !ok {
		return StateInfo{}, exception.ErrOrderUnknown
	}
	if !IsValidTransition(info.State, StateExpired) {
		return *info, exception.ErrOrderInvalidTransition
	}
	info.State = StateExpired
	info.LastUpdateTime = time.Now().UTC()
	return *info, nil
}

// Get returns a copy of the tracked order state.
func (t *Table) Get(clOrdID string) (StateInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.orders[clOrdID]
	if !ok {
		return StateInfo{}, false
	}
	return *info, true
}

// Active returns all orders not yet in a terminal state.
func (t *Table) Active() []StateInfo {
	return t.collect(func(info *StateInfo) bool {
		return !info.State.IsTerminal()
	})
}

// ActiveByExchange returns open orders routed to the given exchange.
func (t *Table) ActiveByExchange(exchange string) []StateInfo {
	return t.collect(func(info *StateInfo) bool {
		return info.Exchange == exchange && !info.State.IsTerminal()
	})
}

// BySymbol returns all tracked orders for a symbol.
func (t *Table) BySymbol(symbol string) []StateInfo {
	return t.collect(func(info *StateInfo) bool {
		return info.Symbol == symbol
	})
}

// StaleBefore returns non-terminal orders not updated since the cutoff,
// split by whether the exchange ever acknowledged them.
func (t *Table) StaleBefore(cutoff time.Time) (pending, acknowledged []StateInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, info := range t.orders {
		if info.State.IsTerminal() || info.LastUpdateTime.After(cutoff) {
			continue
		}
		switch info.State {
		case StatePending:
			pending = append(pending, *info)
		case StateAcknowledged:
			acknowledged = append(acknowledged, *info)
		}
	}
	return pending, acknowledged
}

// PruneTerminal discards terminal orders last updated before the cutoff.
// The exchange remains the source of truth for order history.
func (t *Table) PruneTerminal(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	pruned := 0
	for id, info := range t.orders {
		if info.State.IsTerminal() && info.LastUpdateTime.Before(cutoff) {
			delete(t.orders, id)
			pruned++
		}
	}
	return pruned
}

// Count returns the number of tracked orders.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.orders)
}

func (t *Table) collect(keep func(*StateInfo) bool) []StateInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]StateInfo, 0, len(t.orders))
	for _, info := range t.orders {
		if keep(info) {
			out = append(out, *info)
		}
	}
	return out
}
