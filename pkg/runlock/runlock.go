// Package runlock keeps two pipeline runs from rebuilding the warehouse at the
// same time, using a Redis key as the lock.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired is returned when another run holds the lock
	ErrLockNotAcquired = errors.New("pipeline run lock held by another run")
	// ErrLockNotHeld is returned when releasing a lock that expired or was taken over
	ErrLockNotHeld = errors.New("pipeline run lock not held")
)

const DefaultKey = "fern:lock:pipeline-run"

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// Locker hands out the run lock.
type Locker struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger ectologger.Logger
}

// Lock is a held run lock. Owner is the token stored under the key.
type Lock struct {
	locker *Locker
	Owner  string
}

// NewLocker connects to Redis and checks the connection.
func NewLocker(ctx context.Context, cfg Config, logger ectologger.Logger) (*Locker, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Infof("Connected to Redis at %s", addr)
	return NewLockerWithClient(rdb, cfg.Key, cfg.TTL, logger), nil
}

func NewLockerWithClient(rdb *redis.Client, key string, ttl time.Duration, logger ectologger.Logger) *Locker {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Locker{rdb: rdb, key: key, ttl: ttl, logger: logger}
}

// Acquire takes the lock or fails immediately with ErrLockNotAcquired.
func (l *Locker) Acquire(ctx context.Context) (*Lock, error) {
	owner := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, l.key, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.logger.WithContext(ctx).Debugf("Acquired run lock %s", l.key)
	return &Lock{locker: l, Owner: owner}, nil
}

// Release deletes the key only when this lock still owns it.
func (lock *Lock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.locker.rdb, []string{lock.locker.key}, lock.Owner).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	lock.locker.logger.WithContext(ctx).Debugf("Released run lock %s", lock.locker.key)
	return nil
}

// Extend pushes the expiry out by ttl for a long run.
func (lock *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, lock.locker.rdb, []string{lock.locker.key}, lock.Owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (l *Locker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func (l *Locker) Close() error {
	return l.rdb.Close()
}

// Hold acquires the lock and returns its release function.
func (l *Locker) Hold(ctx context.Context) (func(context.Context) error, error) {
	lock, err := l.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
