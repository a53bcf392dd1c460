package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/myelectricaldata/importer/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Deletes the key only when it still holds our token so an expired lease
// taken over by another replica is left alone
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Extends the lease only while the key still holds our token
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLock guards a run across replicas with a leased key. The lease is
// renewed every third of its TTL until Unlock.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
	stop  chan struct{}
	done  chan struct{}
}

func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

func (l *RedisLock) LockStatus(ctx context.Context) (bool, error) {
	count, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return count != 0, nil
}

func (l *RedisLock) Lock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !acquired {
		return ErrLockHeld
	}

	l.token = token
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.keepAlive(token, l.stop, l.done)

	logger.Log.WithFields(logrus.Fields{"key": l.key, "ttl": l.ttl}).Debug("Acquired run lock")

	return nil
}

func (l *RedisLock) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// a zero TTL lease never expires
	if l.ttl/3 <= 0 {
		<-stop
		return
	}

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			renewed, err := l.renew(ctx, token)
			cancel()
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"key": l.key, "error": err}).Warn("Unable to renew the run lock lease")
				continue
			}
			if !renewed {
				logger.Log.WithFields(logrus.Fields{"key": l.key}).Warn("Run lock lease lost before renewal")
				return
			}
		}
	}
}

// renew reports false when the key no longer holds token
func (l *RedisLock) renew(ctx context.Context, token string) (bool, error) {
	renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis renew: %w", err)
	}
	return renewed == 1, nil
}

func (l *RedisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token == "" {
		return ErrLockNotHeld
	}

	close(l.stop)
	<-l.done

	deleted, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	l.token = ""
	if err != nil {
		return fmt.Errorf("redis unlock: %w", err)
	}
	if deleted == 0 {
		logger.Log.WithFields(logrus.Fields{"key": l.key}).Warn("Run lock lease expired before release")
		return ErrLockNotHeld
	}

	return nil
}
