package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/gif-processor/internal/config"
)

// fetchBackoff is the pause after fetching or settling a message failed on
// every attempt.
const fetchBackoff = 500 * time.Millisecond

// messageHandler handles a single job message. Abandon is called once Handle
// has failed on every attempt and must record the failure durably, so the
// message can be committed without being lost.
type messageHandler interface {
	Handle(ctx context.Context, msg kafka.Message) error
	Abandon(ctx context.Context, msg kafka.Message, cause error) error
}

// source is the subset of a consumer group reader the loop needs.
type source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
	Close() error
}

type wbfSource struct {
	c *wbfkafka.Consumer
}

func (s wbfSource) Fetch(ctx context.Context) (kafka.Message, error) { return s.c.Fetch(ctx) }

func (s wbfSource) Commit(ctx context.Context, msg kafka.Message) error { return s.c.Commit(ctx, msg) }

func (s wbfSource) Close() error { return s.c.Close() }

// Consumer reads job messages and hands them to a handler, committing
// offsets only for messages the handler accepted.
type Consumer struct {
	client   source
	handler  messageHandler
	topic    string
	strategy retry.Strategy
	backoff  time.Duration
	log      zerolog.Logger
}

// New creates a new Consumer joining cfg.GroupID on cfg.Topic.
func New(cfg *config.Kafka, s retry.Strategy, h messageHandler, log zerolog.Logger) *Consumer {
	return newConsumer(wbfSource{c: wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)}, cfg.Topic, s, h, log)
}

func newConsumer(src source, topic string, s retry.Strategy, h messageHandler, log zerolog.Logger) *Consumer {
	return &Consumer{
		client:   src,
		handler:  h,
		topic:    topic,
		strategy: s,
		backoff:  fetchBackoff,
		log:      log.With().Str("topic", topic).Logger(),
	}
}

// Consume fetches messages until ctx is canceled. A message whose handler
// still fails after the retry strategy is exhausted is abandoned and then
// committed. Until a message is either handled or abandoned the consumer
// does not move past it, so a later commit never skips it.
func (c *Consumer) Consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	c.log.Info().Msg("starting consumer")

	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("shutdown signal received, stopping consumer")
			return
		}

		var msg kafka.Message
		err := retry.Do(func() error {
			var fetchErr error
			msg, fetchErr = c.client.Fetch(ctx)
			return fetchErr
		}, c.strategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("failed to fetch message")
			c.pause(ctx)
			continue
		}

		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	log := c.log.With().
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Logger()
	ctx = log.WithContext(ctx)

	for {
		err := c.settle(ctx, msg)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			log.Warn().Msg("stopping with message unsettled, it will be redelivered")
			return
		}
		log.Error().Err(err).Msg("failed to settle message, retrying")
		c.pause(ctx)
	}

	err := retry.Do(func() error {
		return c.client.Commit(ctx, msg)
	}, c.strategy)
	if err != nil {
		log.Error().Err(err).Msg("failed to commit message after retries")
		return
	}

	log.Debug().Msg("message handled")
}

// settle handles msg, or abandons it when every attempt failed.
func (c *Consumer) settle(ctx context.Context, msg kafka.Message) error {
	log := zerolog.Ctx(ctx)

	handleErr := retry.Do(func() error {
		return c.handler.Handle(ctx, msg)
	}, c.strategy)
	if handleErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Error().Err(handleErr).Str("message", string(msg.Value)).Msg("failed to handle message, abandoning")

	return retry.Do(func() error {
		return c.handler.Abandon(ctx, msg, handleErr)
	}, c.strategy)
}

func (c *Consumer) pause(ctx context.Context) {
	t := time.NewTimer(c.backoff)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.client.Close()
}
