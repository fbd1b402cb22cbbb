// Package kafka publishes analysis events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/tracelens/pkg/eventstream"
)

var (
	// ErrNoBrokers is returned when no broker addresses are configured.
	ErrNoBrokers = errors.New("kafka: no brokers configured")

	// ErrNoTopic is returned when no topic is configured.
	ErrNoTopic = errors.New("kafka: no topic configured")
)

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Zero uses the writer default.
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafkago.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes each event as one message keyed by trace id, so all
// analyses of a trace land on the same partition in order.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a Kafka publisher. No connection is made until the
// first event is published.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			WriteTimeout:           cfg.WriteTimeout,
			AllowAutoTopicCreation: true,
		},
	}, nil
}

// PublishAnalysis encodes the event as JSON and writes it to the topic.
func (p *Publisher) PublishAnalysis(ctx context.Context, event *eventstream.AnalysisCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilAnalysisEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding analysis event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.TraceID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing analysis event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
