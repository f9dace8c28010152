package transcriptstream

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/partes/pkg/conversation"
)

// Topic carries every transcript event of every session.
const Topic = "partes.transcript"

const metadataSessionID = "session_id"

// Stream publishes conversation events on Topic and dispatches them to the
// registered handlers through a watermill router.
type Stream struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	redis      *redis.Client
	// shared is set when publisher and subscriber are the same gochannel.
	shared bool
}

var _ conversation.Publisher = (*Stream)(nil)

// New builds the transport selected by s: an in-memory gochannel pub/sub, or
// Redis Streams when s.Enabled is set.
func New(ctx context.Context, s Settings) (*Stream, error) {
	logger := NewWatermillLogger(log.Logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "create router")
	}

	if !s.Enabled {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &Stream{publisher: ch, subscriber: ch, router: router, shared: true}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	if err := EnsureGroupAtTail(ctx, client, Topic, s.Group); err != nil {
		_ = client.Close()
		return nil, err
	}
	marshaler := rstream.DefaultMarshallerUnmarshaller{}
	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis publisher")
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "create redis subscriber")
	}
	log.Info().Str("component", "transcriptstream").Str("addr", s.Addr).Str("group", s.Group).Msg("using redis streams transport")
	return &Stream{publisher: pub, subscriber: sub, router: router, redis: client}, nil
}

// EnsureGroupAtTail creates the consumer group at the stream tail ($) so a
// new group does not replay history. An existing group is left alone.
func EnsureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}

func (s *Stream) PublishEvent(_ context.Context, e conversation.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal transcript event")
	}
	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set(metadataSessionID, e.SessionID)
	return s.publisher.Publish(Topic, msg)
}

// DecodeEvent parses a transcript message payload.
func DecodeEvent(msg *message.Message) (conversation.Event, error) {
	e := conversation.Event{}
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return e, errors.Wrap(err, "decode transcript event")
	}
	return e, nil
}

// AddHandler registers fn for every event on Topic. Handlers must be added
// before Run. Undecodable messages are logged and dropped.
func (s *Stream) AddHandler(name string, fn func(conversation.Event) error) {
	s.router.AddNoPublisherHandler(name, Topic, s.subscriber, func(msg *message.Message) error {
		e, err := DecodeEvent(msg)
		if err != nil {
			log.Warn().Err(err).Str("component", "transcriptstream").Str("message_uuid", msg.UUID).Msg("dropping transcript message")
			return nil
		}
		return fn(e)
	})
}

// Run dispatches messages until ctx is done.
func (s *Stream) Run(ctx context.Context) error {
	return s.router.Run(ctx)
}

// Running is closed once the router has subscribed all handlers.
func (s *Stream) Running() chan struct{} {
	return s.router.Running()
}

func (s *Stream) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(s.router.Close())
	keep(s.publisher.Close())
	if !s.shared {
		keep(s.subscriber.Close())
	}
	if s.redis != nil {
		keep(s.redis.Close())
	}
	return firstErr
}
