package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/murmur/internal/core/domain"
)

const (
	// PingStream holds recorded ping events.
	PingStream = "MURMUR_PINGS"
	// PingSubjectPrefix is followed by the ping's geohash cell.
	PingSubjectPrefix = "murmur.ping."
)

// PingSubject returns the subject a ping for cell is published on.
func PingSubject(cell string) string {
	return PingSubjectPrefix + cell
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:       PingStream,
			Subjects:   []string{PingSubjectPrefix + ">"},
			Retention:  nats.LimitsPolicy,
			MaxAge:     1 * time.Hour,
			Storage:    nats.FileStorage,
			Duplicates: 2 * time.Minute,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishPing publishes a recorded ping. The ping ID doubles as the
// JetStream message ID, so retries within the duplicate window are dropped.
func (p *Publisher) PublishPing(ctx context.Context, ping *domain.LocationPing) error {
	data, err := json.Marshal(ping)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(PingSubject(ping.Cell), data, nats.MsgId(ping.ID), nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("murmur"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
