package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/kafka/consumer"
	"github.com/kbukum/speakerhub/logger"
)

type countingProcessor struct {
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32

	mu   sync.Mutex
	done []string
}

func (p *countingProcessor) Process(ctx context.Context, jobID string) error {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	p.mu.Lock()
	p.done = append(p.done, jobID)
	p.mu.Unlock()
	if jobID == "bad" {
		return errors.New("boom")
	}
	return nil
}

func (p *countingProcessor) finished() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.done)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	proc := &countingProcessor{delay: 20 * time.Millisecond}
	pool := NewPool(Config{Workers: 2, QueueSize: 10}, proc, logger.Nop())
	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}

	ids := []string{"a", "b", "bad", "c", "d", "e"}
	for _, id := range ids {
		if err := pool.Dispatch(ctx, JobEvent{JobID: id, RecordingID: "r-" + id}); err != nil {
			t.Fatalf("Dispatch(%s): %v", id, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for proc.finished() < len(ids) {
		if time.Now().After(deadline) {
			t.Fatalf("finished %d of %d jobs", proc.finished(), len(ids))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := proc.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent = %d, want <= 2", got)
	}
	if h := pool.Health(ctx); h.Status != "healthy" {
		t.Errorf("health = %+v", h)
	}
	if err := pool.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestPoolRejectsWhenStopped(t *testing.T) {
	pool := NewPool(Config{}, &countingProcessor{}, logger.Nop())
	err := pool.Dispatch(context.Background(), JobEvent{JobID: "x"})
	if !apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable) {
		t.Errorf("got %v, want SERVICE_UNAVAILABLE", err)
	}
	if h := pool.Health(context.Background()); h.Status != "unhealthy" {
		t.Errorf("health = %+v", h)
	}
}

func TestPoolStopCancelsAfterTimeout(t *testing.T) {
	proc := &countingProcessor{delay: time.Minute}
	pool := NewPool(Config{Workers: 1}, proc, logger.Nop())
	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := pool.Dispatch(ctx, JobEvent{JobID: "slow"}); err != nil {
		t.Fatal(err)
	}
	for proc.active.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := pool.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Stop took %v", elapsed)
	}
	if proc.active.Load() != 0 {
		t.Error("job still running after Stop")
	}
}

type fakeSender struct {
	topic, key string
	value      []byte
	err        error
}

func (s *fakeSender) SendJSON(_ context.Context, topic, key string, value interface{}) error {
	s.topic, s.key = topic, key
	s.value, _ = json.Marshal(value)
	return s.err
}

func TestKafkaDispatcher(t *testing.T) {
	sender := &fakeSender{}
	d := NewKafkaDispatcher(sender, "", logger.Nop())
	if err := d.Dispatch(context.Background(), JobEvent{JobID: "j1", RecordingID: "r1"}); err != nil {
		t.Fatal(err)
	}
	if sender.topic != DefaultTopic || sender.key != "r1" {
		t.Errorf("topic=%s key=%s", sender.topic, sender.key)
	}
	if string(sender.value) != `{"job_id":"j1","recording_id":"r1"}` {
		t.Errorf("value = %s", sender.value)
	}

	sender.err = errors.New("broker down")
	if err := d.Dispatch(context.Background(), JobEvent{JobID: "j2"}); err == nil {
		t.Error("expected error")
	}
}

type fakeReader struct {
	queue chan kafkago.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(context.Context, ...kafkago.Message) error { return nil }
func (r *fakeReader) Close() error                                             { return nil }

type collectingDispatcher struct {
	mu  sync.Mutex
	got []JobEvent
}

func (d *collectingDispatcher) Dispatch(_ context.Context, ev JobEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, ev)
	return nil
}

func (d *collectingDispatcher) events() []JobEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]JobEvent(nil), d.got...)
}

func TestIntakeFeedsDispatcher(t *testing.T) {
	reader := &fakeReader{queue: make(chan kafkago.Message, 3)}
	reader.queue <- kafkago.Message{Offset: 1, Value: []byte(`{"job_id":"j1","recording_id":"r1"}`)}
	reader.queue <- kafkago.Message{Offset: 2, Value: []byte(`not json`)}
	reader.queue <- kafkago.Message{Offset: 3, Value: []byte(`{"job_id":"j2","recording_id":"r2"}`)}

	target := &collectingDispatcher{}
	in := NewIntake(consumer.NewWithReader(reader, DefaultTopic, "test", logger.Nop()), target, logger.Nop())
	ctx := context.Background()
	if err := in.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(target.events()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("got %d events, want 2", len(target.events()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := in.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	got := target.events()
	if got[0].JobID != "j1" || got[1].JobID != "j2" {
		t.Errorf("events = %+v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Workers != 2 || cfg.Topic != DefaultTopic {
		t.Errorf("defaults = %+v", cfg)
	}
	cfg.Mode = "rabbit"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown mode")
	}
}
