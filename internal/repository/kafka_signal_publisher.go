package repository

import (
	"context"
	"fmt"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	applogger "SignalScan/pkg/logger"
)

// MessagePublisher is the subset of the Kafka producer used by the signal
// publisher.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaSignalPublisher streams emitted signals to a Kafka topic, keyed by
// the latest-signal key so one symbol/timeframe stays on one partition.
type KafkaSignalPublisher struct {
	producer MessagePublisher
	topic    string
	l        *applogger.Logger
}

var _ domrepo.SignalSink = (*KafkaSignalPublisher)(nil)

func NewKafkaSignalPublisher(producer MessagePublisher, topic string, l *applogger.Logger) *KafkaSignalPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaSignalPublisher{producer: producer, topic: topic, l: l}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.Signal) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(s.Key()), s); err != nil {
		p.l.Error("kafka publish signal error",
			applogger.String("topic", p.topic),
			applogger.String("key", s.Key()),
			applogger.Error(err),
		)
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

// Close is a no-op; the producer is shared and closed by the app.
func (p *KafkaSignalPublisher) Close() error { return nil }
