// Package changefeed publishes entity writes to a Kafka topic.
package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	sdk "github.com/segmentio/kafka-go"

	"github.com/AndreasM009/entitystore-go/store"
)

// Op is the kind of write a ChangeEvent describes
type Op string

const (
	OpSave   Op = "save"
	OpDelete Op = "delete"
)

// ChangeEvent is the message value written for each change
type ChangeEvent struct {
	Op         Op              `json:"op"`
	EntityType string          `json:"entityType"`
	ID         int64           `json:"id"`
	Version    int64           `json:"version,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	At         time.Time       `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...sdk.Message) error
	Close() error
}

// ChangeFeed is a store.Hook writing ChangeEvents to Kafka.
// Messages are keyed by entity type and id so changes of one entity stay ordered.
type ChangeFeed struct {
	writer messageWriter
	now    func() time.Time
}

const batchTimeout = 10 * time.Millisecond

// New creates a change feed writing to topic on the given brokers.
// Writes are produced in the background; delivery failures are logged.
func New(brokers []string, topic string) *ChangeFeed {
	return newChangeFeed(&sdk.Writer{
		Addr:         sdk.TCP(brokers...),
		Topic:        topic,
		Balancer:     &sdk.Hash{},
		RequiredAcks: sdk.RequireAll,
		BatchTimeout: batchTimeout,
		Async:        true,
		Completion:   logFailures,
	})
}

func logFailures(messages []sdk.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		slog.Error("changefeed: delivery failed", "key", string(m.Key), "error", err)
	}
}

func newChangeFeed(w messageWriter) *ChangeFeed {
	return &ChangeFeed{writer: w, now: time.Now}
}

func (f *ChangeFeed) AfterSave(ctx context.Context, entityType string, id, version int64, data []byte) error {
	return f.publish(ctx, ChangeEvent{
		Op:         OpSave,
		EntityType: entityType,
		ID:         id,
		Version:    version,
		Data:       data,
		At:         f.now().UTC(),
	})
}

func (f *ChangeFeed) AfterDelete(ctx context.Context, entityType string, id int64) error {
	return f.publish(ctx, ChangeEvent{
		Op:         OpDelete,
		EntityType: entityType,
		ID:         id,
		At:         f.now().UTC(),
	})
}

func (f *ChangeFeed) publish(ctx context.Context, ev ChangeEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("changefeed: marshal %s event: %w", ev.Op, err)
	}

	msg := sdk.Message{
		Key:   []byte(fmt.Sprintf("%s/%d", ev.EntityType, ev.ID)),
		Value: value,
		Headers: []sdk.Header{
			{Key: "op", Value: []byte(ev.Op)},
		},
	}

	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("changefeed: write %s event for %s %d: %w", ev.Op, ev.EntityType, ev.ID, err)
	}
	return nil
}

// Close flushes and closes the underlying writer
func (f *ChangeFeed) Close() error {
	return f.writer.Close()
}

var _ store.Hook = (*ChangeFeed)(nil)
