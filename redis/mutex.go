package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned by Unlock when the lock expired or was taken over.
var ErrLockNotHeld = errors.New("redis: lock not held")

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Mutex is a single-instance Redis lock: SET NX PX with a random token,
// released by compare-and-delete so a holder never frees someone else's lock.
type Mutex struct {
	client *Client
	key    string
	ttl    time.Duration
	retry  time.Duration
	token  string
}

// NewMutex creates a lock on key. ttl bounds how long a crashed holder can
// block others; retry is the polling interval while waiting.
func (c *Client) NewMutex(key string, ttl, retry time.Duration) *Mutex {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &Mutex{client: c, key: c.Key("lock", key), ttl: ttl, retry: retry}
}

// Lock blocks until the lock is acquired or ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	token, err := newToken()
	if err != nil {
		return err
	}
	ticker := time.NewTicker(m.retry)
	defer ticker.Stop()
	for {
		ok, err := m.client.rdb.SetNX(ctx, m.key, token, m.ttl).Result()
		if err != nil {
			return fmt.Errorf("redis lock %s: %w", m.key, err)
		}
		if ok {
			m.token = token
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Unlock releases the lock if this Mutex still holds it.
func (m *Mutex) Unlock(ctx context.Context) error {
	if m.token == "" {
		return ErrLockNotHeld
	}
	n, err := releaseScript.Run(ctx, m.client.rdb, []string{m.key}, m.token).Int()
	m.token = ""
	if err != nil {
		return fmt.Errorf("redis unlock %s: %w", m.key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("redis lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
