package feed

import (
	"context"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

// BookStream consumes normalized order book snapshots published by the
// external market data normalizer over WebSocket.
type BookStream struct {
	wss *ws.WebSocket
}

// NewBookStream creates a stream bound to the normalizer endpoint.
func NewBookStream(ctx context.Context, url string) *BookStream {
	return &BookStream{wss: ws.New(ctx, url)}
}

func (s *BookStream) Len() int {
	return s.wss.Len()
}

func (s *BookStream) Close() {
	s.wss.Close()
}

func (s *BookStream) StartWebsocket(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type bookSubscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

type bookPayload struct {
	Symbol string              `json:"symbol"`
	Bids   [][]decimal.Decimal `json:"bids"`
	Asks   [][]decimal.Decimal `json:"asks"`
	TimeUS int64               `json:"time"`
}

// Subscribe requests snapshots for a symbol.
func (s *BookStream) Subscribe(ctx context.Context, symbol string) error {
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			return client.WriteJSON(bookSubscribeRequest{
				Method: "subscribe.orderbook",
				Params: []string{symbol},
			})
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[bookPayload](m)
			if !ok {
				return false, nil
			}
			return resp.Symbol == symbol, nil
		},
	}); err != nil {
		return errors.Wrap(err, "subscribe orderbook")
	}

	return nil
}

// Observe invokes the handler for every decoded snapshot until the
// returned cancel func runs or the context ends.
func (s *BookStream) Observe(ctx context.Context, handler func(BookUpdate)) (unsubscribe func()) {
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

				payload, ok := ws.ReadMessage[bookPayload](m)
				if !ok || payload.Symbol == "" {
					continue
				}

				bids, err := toLevels(payload.Bids)
				if err != nil {
					logs.Errorf("decode book bids, err: %+v", err)
					continue
				}
				asks, err := toLevels(payload.Asks)
				if err != nil {
					logs.Errorf("decode book asks, err: %+v", err)
					continue
				}

				handler(BookUpdate{
					Symbol:      payload.Symbol,
					Bids:        bids,
					Asks:        asks,
					TimestampUS: payload.TimeUS,
				})
			}
		}
	}()

	return cancel
}
