// Package recorder persists order events and terminal order states to
// PostgreSQL for monitoring and post-trade analysis. Writes are queued
// and flushed by a single background worker so the trading path never
// blocks on the database.
package recorder

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/oms"
	"main/pkg/conn"
)

const defaultQueueSize = 4096

// EventRecord is one persisted order event row.
type EventRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	ClOrdID     string `gorm:"index"`
	Exchange    string
	Symbol      string
	EventType   string
	Payload     string `gorm:"type:jsonb"`
	TimestampUS int64
	CreatedAt   time.Time
}

// TableName fixes the table name regardless of gorm pluralization.
func (EventRecord) TableName() string {
	return "order_events"
}

// Config controls the sink.
type Config struct {
	QueueSize int
}

// Store is the order-event sink.
type Store struct {
	client *conn.Client
	queue  *bus.Queue[EventRecord]
}

// New creates a store on an open connection and migrates the schema.
func New(client *conn.Client, cfg Config) (*Store, error) {
	if client == nil || client.DB() == nil {
		return nil, errors.New("recorder: nil database client")
	}
	if err := client.DB().AutoMigrate(&EventRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate order_events")
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Store{
		client: client,
		queue:  bus.NewQueue[EventRecord](size),
	}, nil
}

// Run drains the queue into the database until the context ends.
func (s *Store) Run(ctx context.Context) {
	s.queue.Run(ctx, func(record EventRecord) {
		if err := s.client.DB().WithContext(ctx).Create(&record).Error; err != nil {
			logs.Errorf("persist order event %s, err: %+v", record.ClOrdID, err)
		}
	})
}

// RecordEvent enqueues an order event for persistence. Drops with a log
// when the queue is saturated rather than blocking the caller.
func (s *Store) RecordEvent(ev oms.OrderEvent) {
	payload, err := sonic.MarshalString(ev)
	if err != nil {
		logs.Errorf("marshal order event %s, err: %+v", ev.ClOrdID, err)
		return
	}

	record := EventRecord{
		ClOrdID:     ev.ClOrdID,
		Exchange:    ev.Exchange,
		Symbol:      ev.Symbol,
		EventType:   ev.Type.String(),
		Payload:     payload,
		TimestampUS: ev.TimestampUS,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.queue.TryPublish(record); err != nil {
		logs.Errorf("enqueue order event %s, err: %+v", ev.ClOrdID, err)
	}
}

// Close stops accepting events. The running drain exits once the queue
// empties or its context ends.
func (s *Store) Close() {
	s.queue.Close()
}
