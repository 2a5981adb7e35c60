package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"ms-ordering/internal/logger"

	"github.com/go-redis/redis/v8"
)

// Redis holds a short-lived per-order lock taken while a payment confirmation
// is being applied. It cheaply serializes the common verify/webhook race; the
// conditional update in the ledger remains the correctness authority, so a
// lost or expired lock is never a safety problem.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{
		Client: client,
		Logger: log,
	}
}

// lockTTL reads the lock duration from the environment, defaulting to 30s.
// The TTL bounds how long a crashed worker can hold the lock.
func (r *Redis) lockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	ttlStr := os.Getenv("PAYMENT_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil || ttlSec <= 0 {
		r.Logger.Warn("REDIS", fmt.Sprintf("Invalid PAYMENT_LOCK_TTL_SECONDS value '%s', using default 30s", ttlStr))
		return defaultTTL
	}

	return time.Duration(ttlSec) * time.Second
}

// LockPayment attempts to take the per-order payment lock. Returns false when
// another worker already holds it.
func (r *Redis) LockPayment(orderID string) (bool, error) {
	key := "payment_lock:" + orderID
	return r.Client.SetNX(context.Background(), key, orderID, r.lockTTL()).Result()
}

// UnlockPayment releases the lock if this order still holds it.
func (r *Redis) UnlockPayment(orderID string) error {
	ctx := context.Background()
	key := "payment_lock:" + orderID

	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == orderID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
