package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribePings delivers every ping recorded from now on to handler. Each
// subscriber gets its own ephemeral consumer, so every API instance sees
// every ping. Malformed messages are terminated; handler errors are
// redelivered up to three times.
func (s *Subscriber) SubscribePings(ctx context.Context, handler func(ctx context.Context, ping *domain.LocationPing) error) error {
	sub, err := s.js.Subscribe(PingSubjectPrefix+">", func(msg *nats.Msg) {
		ping, err := decodePing(msg.Data)
		if err != nil {
			slog.Warn("drop malformed ping event", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, ping); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.BindStream(PingStream),
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func decodePing(data []byte) (*domain.LocationPing, error) {
	var ping domain.LocationPing
	if err := json.Unmarshal(data, &ping); err != nil {
		return nil, err
	}
	if !geohash.Valid(ping.Cell) {
		return nil, fmt.Errorf("invalid geohash %q", ping.Cell)
	}
	return &ping, nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
