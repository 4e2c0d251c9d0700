package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

const lockRetryDelay = 25 * time.Millisecond

// WithLock acquires the named advisory lock in Redis (SET NX PX), runs fn,
// and releases the lock. Acquisition retries until ctx is done. The lock
// carries a TTL so a crashed holder cannot block a capacity forever; fn is
// expected to finish well inside that TTL (it performs a handful of
// single-key operations).
func (s *Service) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	for {
		acqCtx, cancel := s.opCtx(ctx)
		ok, err := s.Redis.SetNX(acqCtx, name, token, s.lockTTL).Result()
		cancel()
		if err != nil {
			return wrap(err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquiring lock %s: %w", name, wrap(ctx.Err()))
		case <-time.After(lockRetryDelay):
		}
	}

	defer func() {
		relCtx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
		defer cancel()
		if err := s.Redis.Eval(relCtx, releaseScript, []string{name}, token).Err(); err != nil {
			// The TTL will reap the lock anyway.
			log.Printf("WARNING: failed to release lock %s: %v", name, err)
		}
	}()

	return fn(ctx)
}
