// Package events fans committed ledger changes out to audit and messaging
// sinks.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"reagentbank.io/internal/ledger"
)

// Producer is the part of a kafka.Writer the sink uses.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each change as JSON, keyed by owner so one owner's
// changes stay ordered within a partition.
type KafkaSink struct {
	p    Producer
	prop propagation.TextMapPropagator
	log  *zap.Logger
}

func NewKafkaSink(p Producer, log *zap.Logger) *KafkaSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaSink{p: p, prop: propagation.TraceContext{}, log: log.With(zap.String("component", "events"))}
}

// NewKafkaWriter returns an async writer: WriteMessages only queues, and
// delivery failures are logged from the completion callback.
func NewKafkaWriter(brokers []string, topic string, log *zap.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("publish ledger changes", zap.Int("messages", len(msgs)), zap.Error(err))
			}
		},
	}
}

func (s *KafkaSink) Record(ctx context.Context, c ledger.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(c.Owner.String()),
		Value: payload,
		Time:  c.At,
	}
	s.prop.Inject(ctx, headerCarrier{msg: &msg})
	return s.p.WriteMessages(ctx, msg)
}

func (s *KafkaSink) Close() error { return s.p.Close() }

type headerCarrier struct{ msg *kafka.Message }

func (h headerCarrier) Get(key string) string {
	for _, hd := range h.msg.Headers {
		if hd.Key == key {
			return string(hd.Value)
		}
	}
	return ""
}

func (h headerCarrier) Set(key, value string) {
	for i, hd := range h.msg.Headers {
		if hd.Key == key {
			h.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	h.msg.Headers = append(h.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (h headerCarrier) Keys() []string {
	out := make([]string, len(h.msg.Headers))
	for i, hd := range h.msg.Headers {
		out[i] = hd.Key
	}
	return out
}

// Multi records to every sink. All sinks are attempted; their errors are
// joined.
type Multi []ledger.Sink

func (m Multi) Record(ctx context.Context, c ledger.Change) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
