package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/speakerhub/kafka"
	"github.com/kbukum/speakerhub/logger"
)

// MessageHandler processes one message. A returned error is logged and the
// message is still committed; handlers record their own failures.
type MessageHandler func(ctx context.Context, msg kafkago.Message) error

// Reader is the subset of kafka-go's Reader the consumer relies on.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer reads a single topic as part of a consumer group.
type Consumer struct {
	reader   Reader
	topic    string
	groupID  string
	log      *logger.Logger
	failures int
	maxWait  time.Duration
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(cfg kafka.Config, topic string, log *logger.Logger) (*Consumer, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka consumer config: %w", err)
	}

	dialer, err := kafka.CreateDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer dialer: %w", err)
	}

	clog := log.WithComponent("kafka.consumer")
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             topic,
		GroupID:           cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       kafkago.FirstOffset,
		MinBytes:          1,
		MaxBytes:          1e6,
		SessionTimeout:    kafka.ParseDuration(cfg.SessionTimeout),
		HeartbeatInterval: kafka.ParseDuration(cfg.HeartbeatInterval),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			clog.Error("reader: "+fmt.Sprintf(msg, args...), map[string]interface{}{"topic": topic})
		}),
	})

	clog.Info("Kafka consumer initialized", map[string]interface{}{
		"topic":   topic,
		"groupID": cfg.GroupID,
		"brokers": cfg.Brokers,
	})
	return NewWithReader(reader, topic, cfg.GroupID, log), nil
}

// NewWithReader wraps an existing reader.
func NewWithReader(r Reader, topic, groupID string, log *logger.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		groupID: groupID,
		log:     log.WithComponent("kafka.consumer"),
		maxWait: 30 * time.Second,
	}
}

// Consume fetches messages and passes each to handler, committing after the
// handler returns. It blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consume loop", map[string]interface{}{
		"topic":   c.topic,
		"groupID": c.groupID,
	})

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, kafkago.ErrGroupClosed) {
				return nil
			}
			if err := c.backoff(ctx, err); err != nil {
				return err
			}
			continue
		}
		c.failures = 0

		if err := handler(ctx, msg); err != nil {
			c.log.Error("Message processing failed", map[string]interface{}{
				"error":  err.Error(),
				"topic":  msg.Topic,
				"offset": msg.Offset,
			})
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("Commit failed", map[string]interface{}{
				"error":  err.Error(),
				"offset": msg.Offset,
			})
		}
	}
}

func (c *Consumer) backoff(ctx context.Context, err error) error {
	c.failures++
	if c.failures <= 3 {
		c.log.Error("Kafka read error", map[string]interface{}{
			"error":    err.Error(),
			"failures": c.failures,
			"topic":    c.topic,
		})
	}

	wait := time.Duration(c.failures) * time.Second
	if wait > c.maxWait {
		wait = c.maxWait
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Topic returns the consumer's topic.
func (c *Consumer) Topic() string { return c.topic }

// Close shuts down the reader.
func (c *Consumer) Close() error {
	c.log.Info("Kafka consumer closing", map[string]interface{}{"topic": c.topic})
	return c.reader.Close()
}
