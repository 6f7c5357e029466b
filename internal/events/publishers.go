package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Envelope is the wire shape published to external streams.
type Envelope struct {
	Source string         `json:"source"`
	Kind   string         `json:"kind,omitempty"`
	Event  LifecycleEvent `json:"event"`
	SentAt time.Time      `json:"sentAt"`
}

func encode(source string, event LifecycleEvent) ([]byte, error) {
	return json.Marshal(Envelope{
		Source: source,
		Kind:   event.NotificationKind(),
		Event:  event,
		SentAt: time.Now().UTC(),
	})
}

// NATSPublisher publishes lifecycle events on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	source  string
}

// NewNATSPublisher returns nil when no connection is configured.
func NewNATSPublisher(conn *nats.Conn, subject, source string) *NATSPublisher {
	if conn == nil || subject == "" {
		return nil
	}
	return &NATSPublisher{conn: conn, subject: subject, source: source}
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Publish(_ context.Context, event LifecycleEvent) error {
	payload, err := encode(p.source, event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, payload)
}

// RedisPublisher publishes lifecycle events on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	source  string
}

// NewRedisPublisher returns nil when no client is configured.
func NewRedisPublisher(client *redis.Client, channel, source string) *RedisPublisher {
	if client == nil || channel == "" {
		return nil
	}
	return &RedisPublisher{client: client, channel: channel, source: source}
}

func (p *RedisPublisher) Name() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	payload, err := encode(p.source, event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
