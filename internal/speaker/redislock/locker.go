// Package redislock provides a speaker.Locker shared by every process that
// talks to the same Redis.
package redislock

import (
	"context"
	"time"

	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/redis"
)

// DefaultKey is the lock key used for identity resolution.
const DefaultKey = "speaker-resolution"

// Locker takes a Redis mutex per Lock call.
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration
	log    *logger.Logger
}

// New creates a Locker on key. ttl bounds how long a crashed holder blocks
// the others.
func New(client *redis.Client, key string, ttl time.Duration, log *logger.Logger) *Locker {
	if key == "" {
		key = DefaultKey
	}
	return &Locker{
		client: client,
		key:    key,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
		log:    log.WithComponent("redislock"),
	}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context) (func(), error) {
	m := l.client.NewMutex(l.key, l.ttl, l.retry)
	if err := m.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		// the caller's ctx may already be cancelled; release regardless
		if err := m.Unlock(context.Background()); err != nil {
			l.log.Warn("releasing resolution lock failed", logger.ErrorFields("unlock", err))
		}
	}, nil
}
