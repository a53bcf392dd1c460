package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"

	"github.com/myelectricaldata/importer/internal/platform/logger"
)

func init() {
	logger.InitLogger()
}

type runLock interface {
	LockStatus(ctx context.Context) (bool, error)
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

func newRedisLock(t *testing.T, ttl time.Duration) (*RedisLock, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLock(client, "myelectricaldata:import:lock", ttl), server, client
}

func verifyLockCycle(t *testing.T, l runLock) {
	ctx := context.Background()

	held, err := l.LockStatus(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, held, false)

	assert.Equal(t, l.Lock(ctx), nil)

	held, err = l.LockStatus(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, held, true)

	assert.Equal(t, l.Lock(ctx), ErrLockHeld)

	assert.Equal(t, l.Unlock(ctx), nil)

	held, err = l.LockStatus(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, held, false)

	assert.Equal(t, l.Unlock(ctx), ErrLockNotHeld)
}

func TestProcessLockCycle(t *testing.T) {
	verifyLockCycle(t, NewProcessLock())
}

func TestRedisLockCycle(t *testing.T) {
	l, _, _ := newRedisLock(t, time.Minute)
	verifyLockCycle(t, l)
}

func TestRedisLockIsSharedAcrossReplicas(t *testing.T) {
	first, _, client := newRedisLock(t, time.Minute)
	second := NewRedisLock(client, "myelectricaldata:import:lock", time.Minute)
	ctx := context.Background()

	assert.Equal(t, first.Lock(ctx), nil)
	assert.Equal(t, second.Lock(ctx), ErrLockHeld)

	held, err := second.LockStatus(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, held, true)

	assert.Equal(t, second.Unlock(ctx), ErrLockNotHeld)
	assert.Equal(t, first.Unlock(ctx), nil)
	assert.Equal(t, second.Lock(ctx), nil)
}

func TestRedisLockLeaseExpires(t *testing.T) {
	first, server, client := newRedisLock(t, time.Minute)
	second := NewRedisLock(client, "myelectricaldata:import:lock", time.Minute)
	ctx := context.Background()

	assert.Equal(t, first.Lock(ctx), nil)
	server.FastForward(2 * time.Minute)

	assert.Equal(t, second.Lock(ctx), nil)
	assert.Equal(t, first.Unlock(ctx), ErrLockNotHeld)

	held, err := second.LockStatus(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, held, true)
}

func TestRedisLockRenewOnlyWithOwnToken(t *testing.T) {
	l, server, _ := newRedisLock(t, time.Second)
	ctx := context.Background()

	assert.Equal(t, l.Lock(ctx), nil)
	defer l.Unlock(ctx)

	server.FastForward(900 * time.Millisecond)

	renewed, err := l.renew(ctx, l.token)
	assert.Equal(t, err, nil)
	assert.Equal(t, renewed, true)
	assert.Equal(t, server.TTL("myelectricaldata:import:lock"), time.Second)

	renewed, err = l.renew(ctx, "another-replica")
	assert.Equal(t, err, nil)
	assert.Equal(t, renewed, false)

	server.FastForward(900 * time.Millisecond)
	assert.Equal(t, server.Exists("myelectricaldata:import:lock"), true)
}

func TestRedisLockLeaseIsRenewedWhileHeld(t *testing.T) {
	ttl := 60 * time.Millisecond
	first, server, client := newRedisLock(t, ttl)
	second := NewRedisLock(client, "myelectricaldata:import:lock", ttl)
	ctx := context.Background()

	assert.Equal(t, first.Lock(ctx), nil)

	// without renewal the lease has 10ms left
	server.FastForward(50 * time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for server.TTL("myelectricaldata:import:lock") <= 10*time.Millisecond {
		if time.Now().After(deadline) {
			t.Fatal("run lock lease was never renewed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	server.FastForward(50 * time.Millisecond)
	assert.Equal(t, second.Lock(ctx), ErrLockHeld)

	assert.Equal(t, first.Unlock(ctx), nil)
	assert.Equal(t, server.Exists("myelectricaldata:import:lock"), false)
}
