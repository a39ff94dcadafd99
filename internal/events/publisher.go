// Package events publishes stored-result notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// Publisher announces stored results.
type Publisher interface {
	Publish(ctx context.Context, ev model.ResultEvent) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, model.ResultEvent) error { return nil }
func (Nop) Close() error                                     { return nil }

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per result, keyed by origin id.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a synchronous publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev model.ResultEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "events: marshal result event")
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.OriginID, 10)),
		Value: value,
	})
	if err != nil {
		return eris.Wrapf(err, "events: publish result %d", ev.ResultID)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return eris.Wrap(p.writer.Close(), "events: close writer")
}
