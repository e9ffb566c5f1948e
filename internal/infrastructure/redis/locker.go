package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease that was re-acquired elsewhere is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short leases keyed by name. It keeps a periodic job to a
// single replica per run.
type Locker struct {
	client *goredis.Client
	prefix string
}

func NewLocker(client *goredis.Client, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix}
}

func (l *Locker) key(name string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, name)
}

func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := l.key(name)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("releasing lock %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}
