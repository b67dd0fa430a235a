package redis

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	lockKeyPrefix = "trip_lock:"

	// lockTTL bounds how long a crashed instance can keep a trip locked.
	lockTTL = 5 * time.Second

	// acquireWindow bounds how long LockTrip keeps retrying before
	// reporting the trip as busy.
	acquireWindow = time.Second
	retryDelay    = 25 * time.Millisecond
)

// Redis serializes the lazy-reap-then-hold sequence per trip across all
// service instances. The lock value is a per-acquisition token so only the
// holder can unlock.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// LockTrip acquires the per-trip lock, retrying briefly on contention.
// Returns ok=false when the trip stayed locked for the whole acquire
// window; the caller should tell the client to retry.
func (r *Redis) LockTrip(ctx context.Context, tripID string) (string, bool, error) {
	key := lockKeyPrefix + tripID
	token := uuid.NewString()
	deadline := time.Now().Add(acquireWindow)

	for {
		ok, err := r.Client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return token, true, nil
		}
		if time.Now().After(deadline) {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// unlockScript deletes the lock only when the stored token matches, as a
// single server-side step. A separate GET/DEL would leave a window where
// the lock expires and a new holder's lock gets deleted.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// UnlockTrip releases the lock only if this caller still owns it; a lock
// that expired and was re-acquired by someone else is left alone.
func (r *Redis) UnlockTrip(ctx context.Context, tripID, token string) error {
	key := lockKeyPrefix + tripID

	deleted, err := unlockScript.Run(ctx, r.Client, []string{key}, token).Int()
	if err != nil && err != redis.Nil {
		return err
	}
	if deleted == 0 {
		r.Logger.Printf("REDIS: trip %s lock already released or owned by another holder", tripID)
	}
	return nil
}
