package redislock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/testutil"
)

func TestLockerExcludes(t *testing.T) {
	client, _ := testutil.T(t).Redis()
	l := New(client, "", time.Second, logger.Nop())
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("max holders = %d", maxSeen)
	}
}

func TestLockerHonoursContext(t *testing.T) {
	client, _ := testutil.T(t).Redis()
	l := New(client, "k", time.Minute, logger.Nop())

	unlock, err := l.Lock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx); err == nil {
		t.Fatal("second Lock should time out")
	}
}
