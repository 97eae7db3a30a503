package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// exclusive runs n goroutines that each take the lock for user 7 and bumps
// a counter inside it, failing when two holders overlap.
func exclusive(t *testing.T, l Locker, n int) {
	t.Helper()
	var (
		inside  int32
		mu      sync.Mutex
		overlap bool
		done    int
		wg      sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), 7)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			done++
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	if overlap {
		t.Fatal("two holders inside the lock at once")
	}
	if done != n {
		t.Fatalf("done = %d, want %d", done, n)
	}
}

func TestMemoryLockerSerializesUser(t *testing.T) {
	l := NewMemoryLocker()
	exclusive(t, l, 8)
	if n := len(l.(*memoryLocker).locks); n != 0 {
		t.Fatalf("%d lock entries left behind", n)
	}
}

func TestMemoryLockerUsersIndependent(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), 1)
	if err != nil {
		t.Fatalf("lock 1: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	other, err := l.Lock(ctx, 2)
	if err != nil {
		t.Fatalf("lock 2 blocked by user 1: %v", err)
	}
	other()
}

func TestMemoryLockerHonoursContext(t *testing.T) {
	l := NewMemoryLocker()
	unlock, err := l.Lock(context.Background(), 1)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), 1)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}

func TestRedisLockerSerializesUser(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, RedisLockOptions{Retry: time.Millisecond})
	exclusive(t, l, 5)
	if _, ok := fake.data["shopbot:lock:7"]; ok {
		t.Fatal("lock key left behind")
	}
}

func TestRedisLockerTimesOut(t *testing.T) {
	fake := newFakeRedis()
	fake.data["shopbot:lock:7"] = "someone-else"
	l := NewRedisLocker(fake, RedisLockOptions{Wait: 5 * time.Millisecond, Retry: time.Millisecond})

	if _, err := l.Lock(context.Background(), 7); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
	if fake.data["shopbot:lock:7"] != "someone-else" {
		t.Fatal("foreign lock was touched")
	}
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	fake := newFakeRedis()
	l := NewRedisLocker(fake, RedisLockOptions{})
	unlock, err := l.Lock(context.Background(), 7)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if got := fake.ttls["shopbot:lock:7"]; got != 10*time.Second {
		t.Fatalf("ttl = %v", got)
	}
	// Simulate expiry and takeover by another replica.
	fake.data["shopbot:lock:7"] = "other-replica"
	unlock()
	if fake.data["shopbot:lock:7"] != "other-replica" {
		t.Fatal("unlock deleted a lock it no longer owns")
	}
}
