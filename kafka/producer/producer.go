package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/speakerhub/kafka"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/resilience"
)

// Writer is the subset of kafka-go's Writer the producer relies on.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes JSON events with bounded retries.
type Producer struct {
	writer Writer
	cfg    kafka.Config
	log    *logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewProducer builds a producer backed by a kafka-go Writer.
func NewProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}

	transport, err := kafka.CreateTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer transport: %w", err)
	}

	plog := log.WithComponent("kafka.producer")
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: kafka.ParseDuration(cfg.BatchTimeout),
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  kafka.ResolveCompression(cfg.Compression),
		WriteTimeout: kafka.ParseDuration(cfg.WriteTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			plog.Error("writer: "+fmt.Sprintf(msg, args...))
		}),
	}

	plog.Info("Kafka producer initialized", map[string]interface{}{
		"brokers":     cfg.Brokers,
		"compression": cfg.Compression,
	})
	return NewWithWriter(cfg, w, log), nil
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(cfg kafka.Config, w Writer, log *logger.Logger) *Producer {
	cfg.ApplyDefaults()
	return &Producer{writer: w, cfg: cfg, log: log.WithComponent("kafka.producer")}
}

// WriteMessages sends msgs, retrying transient failures up to cfg.Retries attempts.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("producer is closed")
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    p.cfg.Retries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			p.log.Warn("Kafka write failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
				"backoff": backoff.String(),
			})
		},
	}
	if err := resilience.RetryFunc(ctx, retry, func() error {
		return p.writer.WriteMessages(ctx, msgs...)
	}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// SendJSON marshals value and publishes it to topic under key.
func (p *Producer) SendJSON(ctx context.Context, topic, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return p.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}

// Close shuts down the producer. It is safe to call more than once.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("Kafka producer closing")
	return p.writer.Close()
}
