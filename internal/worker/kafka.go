package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/speakerhub/component"
	"github.com/kbukum/speakerhub/kafka/consumer"
	"github.com/kbukum/speakerhub/logger"
)

// JSONSender publishes JSON values. *producer.Producer implements it.
type JSONSender interface {
	SendJSON(ctx context.Context, topic, key string, value interface{}) error
}

// KafkaDispatcher publishes jobs to a topic instead of running them.
type KafkaDispatcher struct {
	sender JSONSender
	topic  string
	log    *logger.Logger
}

var _ Dispatcher = (*KafkaDispatcher)(nil)

// NewKafkaDispatcher creates a dispatcher publishing to topic.
func NewKafkaDispatcher(sender JSONSender, topic string, log *logger.Logger) *KafkaDispatcher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaDispatcher{sender: sender, topic: topic, log: log.WithComponent("worker.kafka")}
}

// Dispatch publishes ev keyed by recording so events of one recording stay
// ordered.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, ev JobEvent) error {
	if err := d.sender.SendJSON(ctx, d.topic, ev.RecordingID, ev); err != nil {
		return fmt.Errorf("publish job %s: %w", ev.JobID, err)
	}
	d.log.Debug("job published", map[string]interface{}{
		logger.FieldJobID: ev.JobID,
		"topic":           d.topic,
	})
	return nil
}

// MessageSource is the consume side of a Kafka topic.
// *consumer.Consumer implements it.
type MessageSource interface {
	Consume(ctx context.Context, handler consumer.MessageHandler) error
	Topic() string
	Close() error
}

// Intake consumes JobEvents and hands them to a Dispatcher, normally the
// local Pool.
type Intake struct {
	source MessageSource
	target Dispatcher
	log    *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ component.Component = (*Intake)(nil)

// NewIntake creates an intake feeding target.
func NewIntake(source MessageSource, target Dispatcher, log *logger.Logger) *Intake {
	return &Intake{source: source, target: target, log: log.WithComponent("worker.intake")}
}

func (in *Intake) Name() string { return "worker-intake" }

// Start runs the consume loop in the background.
func (in *Intake) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		if err := in.source.Consume(ctx, in.handle); err != nil && !errors.Is(err, context.Canceled) {
			in.log.Error("consume loop stopped", logger.ErrorFields("consume", err))
		}
	}()
	return nil
}

// handle decodes one message. Malformed events are logged and skipped so
// they do not block the partition.
func (in *Intake) handle(ctx context.Context, msg kafkago.Message) error {
	var ev JobEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.JobID == "" {
		in.log.Warn("skipping malformed job event", map[string]interface{}{
			"offset": msg.Offset,
			"value":  string(msg.Value),
		})
		return nil
	}
	return in.target.Dispatch(ctx, ev)
}

// Stop ends the consume loop and closes the source.
func (in *Intake) Stop(context.Context) error {
	if in.cancel != nil {
		in.cancel()
	}
	in.wg.Wait()
	return in.source.Close()
}

func (in *Intake) Health(context.Context) component.Health {
	return component.Health{Name: in.Name(), Status: component.StatusHealthy, Message: "topic " + in.source.Topic()}
}

func (in *Intake) Describe() component.Description {
	return component.Description{Name: "Job Intake", Type: "kafka", Details: in.source.Topic()}
}
