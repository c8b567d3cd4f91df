// Package kafka feeds run-engine documents from a Kafka topic into a
// Handler, committing each offset once the handler succeeds.
package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/brokerdex/internal/metrics"
)

// DefaultName is assumed for messages that carry a bare document.
const DefaultName = "start"

// Config holds the consumer settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Handler processes one (name, document) pair.
type Handler func(ctx context.Context, name string, doc map[string]any) error

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Retry delays for a failing handler. The delay doubles per attempt.
const (
	DefaultRetryDelay    = 100 * time.Millisecond
	DefaultMaxRetryDelay = 10 * time.Second
)

// Consumer reads a topic and dispatches decoded documents to a Handler.
type Consumer struct {
	reader   messageReader
	handler  Handler
	logger   *zap.Logger
	delay    time.Duration
	maxDelay time.Duration
}

// NewConsumer creates a consumer-group reader for cfg.Topic.
func NewConsumer(cfg Config, handler Handler, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	if logger == nil {
		logger = zap.NewNop()
	}
	return newConsumer(r, handler, logger.With(zap.String("topic", cfg.Topic))), nil
}

func newConsumer(r messageReader, handler Handler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		reader:   r,
		handler:  handler,
		logger:   logger,
		delay:    DefaultRetryDelay,
		maxDelay: DefaultMaxRetryDelay,
	}
}

// Run consumes until ctx is canceled. Undecodable messages are committed
// and skipped. A failing handler is retried on the same message until it
// succeeds, so no later offset of the partition is committed past it.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		log := c.logger.With(zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

		name, doc, err := Decode(msg.Value)
		if err != nil {
			log.Warn("skipping undecodable message", zap.Error(err))
			metrics.ConsumerMessagesTotal.WithLabelValues(metrics.ResultUndecodable).Inc()
			c.commit(ctx, log, msg)
			continue
		}

		if !c.handle(ctx, log, name, doc) {
			return nil
		}
		metrics.ConsumerMessagesTotal.WithLabelValues(metrics.ResultHandled).Inc()
		c.commit(ctx, log, msg)
	}
}

// handle runs the handler until it succeeds. It returns false when ctx
// is canceled first.
func (c *Consumer) handle(ctx context.Context, log *zap.Logger, name string, doc map[string]any) bool {
	delay := c.delay
	for attempt := 1; ; attempt++ {
		err := c.handler(ctx, name, doc)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		metrics.ConsumerMessagesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		log.Error("failed to process message, retrying",
			zap.String("name", name), zap.Int("attempt", attempt),
			zap.Duration("next_delay", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		delay = min(delay*2, c.maxDelay)
	}
}

func (c *Consumer) commit(ctx context.Context, log *zap.Logger, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		log.Error("failed to commit message", zap.Error(err))
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Decode parses a message value. Both the run-engine pair
// ["start", {...}] and a bare {...} document (taken as "start") are
// accepted. Numbers are kept as json.Number.
func Decode(value []byte) (string, map[string]any, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", nil, errors.New("empty message")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] != '[' {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			return "", nil, fmt.Errorf("decode document: %w", err)
		}
		if doc == nil {
			return "", nil, errors.New("document is null")
		}
		return DefaultName, doc, nil
	}

	var pair []json.RawMessage
	if err := dec.Decode(&pair); err != nil {
		return "", nil, fmt.Errorf("decode pair: %w", err)
	}
	if len(pair) != 2 {
		return "", nil, fmt.Errorf("pair must have 2 elements, got %d", len(pair))
	}

	var name string
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode name: %w", err)
	}

	docDec := json.NewDecoder(bytes.NewReader(pair[1]))
	docDec.UseNumber()
	var doc map[string]any
	if err := docDec.Decode(&doc); err != nil {
		return "", nil, fmt.Errorf("decode %s document: %w", name, err)
	}
	if doc == nil {
		return "", nil, fmt.Errorf("%s document is null", name)
	}
	return name, doc, nil
}
