package throttle

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("too many failed login attempts")

type counter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// LoginThrottle counts failed logins per user id in redis. The first failure
// opens a window of length lockout; reaching maxAttempts inside it locks the
// account until the window expires. A nil client disables throttling.
type LoginThrottle struct {
	client      counter
	maxAttempts int
	lockout     time.Duration
}

func New(client *redis.Client, maxAttempts int, lockout time.Duration) *LoginThrottle {
	t := &LoginThrottle{maxAttempts: maxAttempts, lockout: lockout}
	if client != nil {
		t.client = client
	}
	return t
}

func (t *LoginThrottle) enabled() bool {
	return t != nil && t.client != nil && t.maxAttempts > 0
}

func key(userID string) string {
	return "login:failures:" + userID
}

func (t *LoginThrottle) Allow(ctx context.Context, userID string) error {
	if !t.enabled() {
		return nil
	}
	raw, err := t.client.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	if count >= t.maxAttempts {
		return ErrLocked
	}
	return nil
}

func (t *LoginThrottle) Fail(ctx context.Context, userID string) error {
	if !t.enabled() {
		return nil
	}
	count, err := t.client.Incr(ctx, key(userID)).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return t.client.Expire(ctx, key(userID), t.lockout).Err()
	}
	return nil
}

func (t *LoginThrottle) Reset(ctx context.Context, userID string) error {
	if !t.enabled() {
		return nil
	}
	return t.client.Del(ctx, key(userID)).Err()
}
