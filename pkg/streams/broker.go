// Package streams builds the watermill transport carrying per-session
// fragment events: an in-memory gochannel by default, Redis Streams when
// enabled so fragments survive fan-out across consumers.
package streams

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Settings holds the Redis Streams transport configuration.
type Settings struct {
	Enabled bool
	Addr    string
	Group   string
}

// Broker owns the publisher side of the fragment transport and hands out
// per-consumer subscribers.
type Broker struct {
	settings Settings

	publisher message.Publisher
	channel   *gochannel.GoChannel
	client    *redis.Client
}

// Topic returns the per-session event topic.
func Topic(sessionID string) string {
	return "chat:" + sessionID
}

func NewBroker(settings Settings) (*Broker, error) {
	logger := NewWatermillLogger(log.Logger)
	if !settings.Enabled {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &Broker{settings: settings, publisher: ch, channel: ch}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: settings.Addr})
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: rstream.DefaultMarshallerUnmarshaller{},
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "build redis publisher")
	}
	log.Info().Str("addr", settings.Addr).Msg("using redis streams transport")
	return &Broker{settings: settings, publisher: pub, client: client}, nil
}

func (b *Broker) Publisher() message.Publisher {
	return b.publisher
}

// Subscribe opens a per-consumer subscription on a session topic. The
// returned cleanup must be called once the consumer is done; for Redis it
// closes the dedicated subscriber, for the in-memory channel cancelling ctx
// is enough.
func (b *Broker) Subscribe(ctx context.Context, sessionID string, consumer string) (<-chan *message.Message, func(), error) {
	topic := Topic(sessionID)
	if b.channel != nil {
		ch, err := b.channel.Subscribe(ctx, topic)
		if err != nil {
			return nil, nil, errors.Wrap(err, "subscribe in-memory")
		}
		return ch, func() {}, nil
	}
	if err := b.ensureGroupAtTail(ctx, topic); err != nil {
		return nil, nil, err
	}
	// dedicated client per subscriber; watermill owns its lifecycle
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        redis.NewClient(&redis.Options{Addr: b.settings.Addr}),
		Unmarshaller:  rstream.DefaultMarshallerUnmarshaller{},
		ConsumerGroup: b.settings.Group,
		Consumer:      consumer,
	}, NewWatermillLogger(log.Logger))
	if err != nil {
		return nil, nil, errors.Wrap(err, "build redis subscriber")
	}
	ch, err := sub.Subscribe(ctx, topic)
	if err != nil {
		_ = sub.Close()
		return nil, nil, errors.Wrap(err, "subscribe redis")
	}
	return ch, func() { _ = sub.Close() }, nil
}

// ensureGroupAtTail creates the consumer group at $ so a fresh subscriber
// does not replay the stream's history.
func (b *Broker) ensureGroupAtTail(ctx context.Context, topic string) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, b.settings.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errors.Wrap(err, "create consumer group")
	}
	return nil
}

func (b *Broker) Close() error {
	if b.channel != nil {
		return b.channel.Close()
	}
	if err := b.publisher.Close(); err != nil {
		return err
	}
	return b.client.Close()
}
