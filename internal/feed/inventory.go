package feed

import (
	"context"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// InventoryStream consumes off-exchange exposure updates published by the
// external hedging system.
type InventoryStream struct {
	wss *ws.WebSocket
}

// NewInventoryStream creates a stream bound to the publisher endpoint.
func NewInventoryStream(ctx context.Context, url string) *InventoryStream {
	return &InventoryStream{wss: ws.New(ctx, url)}
}

func (s *InventoryStream) Len() int {
	return s.wss.Len()
}

func (s *InventoryStream) Close() {
	s.wss.Close()
}

func (s *InventoryStream) StartWebsocket(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type inventoryPayload struct {
	AssetSymbol string          `json:"asset_symbol"`
	DeltaUnits  decimal.Decimal `json:"delta_units"`
}

// Observe invokes the handler for every decoded exposure update.
func (s *InventoryStream) Observe(ctx context.Context, handler func(InventoryUpdate)) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()
	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				payload, ok := ws.ReadMessage[inventoryPayload](m)
				if !ok || payload.AssetSymbol == "" {
					continue
				}

				delta, err := toFloat(payload.DeltaUnits)
				if err != nil {
					logs.Errorf("decode inventory delta, err: %+v", err)
					continue
				}

				handler(InventoryUpdate{
					Symbol: payload.AssetSymbol,
					Delta:  delta,
				})
			}
		}
	}()

	return cancel
}
