package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/gif-processor/internal/config"
	"github.com/aliskhannn/gif-processor/internal/model"
)

// Producer publishes job announcements to the jobs topic.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
}

// New creates a new Producer for cfg.Topic. Sends are retried with s.
func New(cfg *config.Kafka, s retry.Strategy) *Producer {
	return &Producer{
		Client:   wbfkafka.NewProducer(cfg.Brokers, cfg.Topic),
		strategy: s,
	}
}

// Produce sends msg keyed by the job ID, so redeliveries of one job land
// on the same partition.
func (p *Producer) Produce(ctx context.Context, msg model.JobMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal job message: %w", err)
	}

	if err := p.Client.SendWithRetry(ctx, p.strategy, []byte(msg.ID.String()), data); err != nil {
		return fmt.Errorf("send job message: %w", err)
	}

	return nil
}
