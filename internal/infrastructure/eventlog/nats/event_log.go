// Package nats implements the event log port on NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Haleralex/walletcore/internal/application/ports"
)

// Compile-time check
var _ ports.EventLog = (*EventLog)(nil)

// Config holds the JetStream settings.
type Config struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	// DuplicateWindow is how long JetStream remembers message ids for
	// server-side deduplication.
	DuplicateWindow time.Duration
}

// DefaultConfig returns development defaults.
func DefaultConfig() Config {
	return Config{
		URL:             natsgo.DefaultURL,
		StreamName:      "WALLET_EVENTS",
		SubjectPrefix:   "wallet.events",
		DuplicateWindow: 2 * time.Minute,
	}
}

// EventLog implements ports.EventLog on a JetStream stream.
//
// Events publish to <prefix>.<aggregate_id>, so one wallet's events land
// on one subject and keep their append order. The outbox's event id rides
// as the JetStream message id: redelivery after a publisher crash is then
// absorbed by the server's duplicate window instead of reaching consumers
// twice.
type EventLog struct {
	conn   *natsgo.Conn
	js     jetstream.JetStream
	prefix string
}

// NewEventLog connects to NATS and ensures the stream exists.
func NewEventLog(ctx context.Context, cfg Config) (*EventLog, error) {
	conn, err := natsgo.Connect(cfg.URL,
		natsgo.Name("walletcore"),
		natsgo.Timeout(10*time.Second),
		natsgo.ReconnectWait(time.Second),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{cfg.SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: cfg.DuplicateWindow,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.StreamName, err)
	}

	return &EventLog{
		conn:   conn,
		js:     js,
		prefix: cfg.SubjectPrefix,
	}, nil
}

// Append publishes one event envelope to the aggregate's subject.
func (l *EventLog) Append(ctx context.Context, aggregateID, eventID uuid.UUID, eventType string, payload []byte) error {
	msg := &natsgo.Msg{
		Subject: l.prefix + "." + aggregateID.String(),
		Data:    payload,
		Header:  natsgo.Header{},
	}
	msg.Header.Set(natsgo.MsgIdHdr, eventID.String())
	msg.Header.Set("Event-Type", eventType)

	if _, err := l.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for aggregate %s: %w", eventType, aggregateID, err)
	}

	return nil
}

// Ping verifies the connection with a server round trip.
func (l *EventLog) Ping(ctx context.Context) error {
	if !l.conn.IsConnected() {
		return errors.New("nats: not connected")
	}
	return l.conn.FlushWithContext(ctx)
}

// Close drains the connection, letting buffered publishes flush first.
func (l *EventLog) Close() error {
	return l.conn.Drain()
}
