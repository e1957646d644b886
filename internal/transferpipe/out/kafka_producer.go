package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Producer sends one keyed record. Implementations must be goroutine-safe.
type Producer interface {
	Send(ctx context.Context, key string, value []byte) error
	Close() error
}

type KafkaProducer struct {
	topic string
	sp    sarama.SyncProducer
}

// NewSaramaConfig is the producer configuration: leader ack only, lz4, and a
// 1ms linger so records batch without adding visible latency.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "transferpipe"
	cfg.Version = sarama.V2_1_0_0

	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionLZ4
	cfg.Producer.Flush.Frequency = time.Millisecond

	// SyncProducer must have Return.Successes=true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	return cfg
}

func NewKafkaProducer(brokers []string, topic string, cfg *sarama.Config) (*KafkaProducer, error) {
	if topic == "" {
		return nil, errors.New("topic empty")
	}
	if len(brokers) == 0 {
		return nil, errors.New("no brokers")
	}
	if cfg == nil {
		cfg = NewSaramaConfig()
	}
	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaProducerFrom(sp, topic), nil
}

// NewKafkaProducerFrom wraps an existing SyncProducer (tests pass sarama mocks).
func NewKafkaProducerFrom(sp sarama.SyncProducer, topic string) *KafkaProducer {
	return &KafkaProducer{topic: topic, sp: sp}
}

func (p *KafkaProducer) Close() error {
	if p.sp != nil {
		return p.sp.Close()
	}
	return nil
}

// Send waits for the broker ack or ctx, whichever comes first. sarama's
// SyncProducer takes no context, so on timeout the send keeps running in the
// background and its result is discarded.
func (p *KafkaProducer) Send(ctx context.Context, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.sp.SendMessage(msg)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("kafka send: %w", err)
		}
		return nil
	}
}
