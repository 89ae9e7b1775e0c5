package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"vendapos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChangesChannel is the Redis pub/sub channel carrying changes.
const ChangesChannel = "vendapos:changes"

// ── Redis ─────────────────────────────────────────────────────────────────────

type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: ChangesChannel}
}

func (p *RedisPublisher) Publish(ctx context.Context, c Change) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("realtime: marshal change: %w", err)
	}
	return p.rdb.Publish(ctx, p.channel, body).Err()
}

// RedisSource subscribes to the changes channel.
type RedisSource struct {
	rdb     *redis.Client
	channel string
}

func NewRedisSource(rdb *redis.Client) *RedisSource {
	return &RedisSource{rdb: rdb, channel: ChangesChannel}
}

func (s *RedisSource) Run(ctx context.Context, sink Sink) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: redis subscribe: %w", err)
	}
	log.Info().Str("channel", s.channel).Msg("realtime: redis source subscribed")

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("realtime: redis subscription closed")
			}
			forward(ctx, sink, []byte(msg.Payload), "redis")
		}
	}
}

// ── AMQP ──────────────────────────────────────────────────────────────────────

type AMQPPublisher struct {
	client   *infra.AMQPClient
	exchange string
}

func NewAMQPPublisher(client *infra.AMQPClient) *AMQPPublisher {
	return &AMQPPublisher{client: client, exchange: infra.ChangesExchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, c Change) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("realtime: marshal change: %w", err)
	}
	return p.client.Publish(ctx, p.exchange, body)
}

// AMQPSource consumes the changes fanout exchange through an exclusive queue.
type AMQPSource struct {
	client   *infra.AMQPClient
	exchange string
	consumer string
}

func NewAMQPSource(client *infra.AMQPClient, consumer string) *AMQPSource {
	return &AMQPSource{client: client, exchange: infra.ChangesExchange, consumer: consumer}
}

func (s *AMQPSource) Run(ctx context.Context, sink Sink) error {
	if err := s.client.DeclareFanout(s.exchange); err != nil {
		return fmt.Errorf("realtime: declare exchange: %w", err)
	}
	deliveries, err := s.client.Subscribe(s.exchange, s.consumer)
	if err != nil {
		return fmt.Errorf("realtime: amqp subscribe: %w", err)
	}
	log.Info().Str("exchange", s.exchange).Msg("realtime: amqp source subscribed")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("realtime: amqp deliveries closed")
			}
			forward(ctx, sink, d.Body, "amqp")
		}
	}
}

func forward(ctx context.Context, sink Sink, body []byte, transport string) {
	var c Change
	if err := json.Unmarshal(body, &c); err != nil {
		log.Warn().Err(err).Str("transport", transport).Msg("realtime: dropping malformed change")
		return
	}
	if err := sink(ctx, c); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("transport", transport).Msg("realtime: sink rejected change")
	}
}
