package handoff

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Guard admits at most one outstanding assistant call per ticket.
type Guard interface {
	// TryAcquire returns a release func when the ticket was free, or ok=false
	// when another call is in flight.
	TryAcquire(ctx context.Context, ticketID string) (release func(), ok bool, err error)
}

// LocalGuard is an in-process Guard for single-instance deployments and tests.
type LocalGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewLocalGuard creates an empty guard.
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{inFlight: make(map[string]struct{})}
}

// TryAcquire implements Guard.
func (g *LocalGuard) TryAcquire(_ context.Context, ticketID string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[ticketID]; busy {
		return nil, false, nil
	}
	g.inFlight[ticketID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, ticketID)
			g.mu.Unlock()
		})
	}, true, nil
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares the in-flight lock across service instances. The TTL bounds
// how long a crashed holder can block a ticket.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisGuard creates a guard storing locks under "helpdesk:assistant:<ticket>".
func NewRedisGuard(client redis.UniversalClient, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl, prefix: "helpdesk:assistant:"}
}

// Key returns the redis key used for the ticket.
func (g *RedisGuard) Key(ticketID string) string {
	return g.prefix + ticketID
}

// TryAcquire implements Guard with SET NX PX.
func (g *RedisGuard) TryAcquire(ctx context.Context, ticketID string) (func(), bool, error) {
	key := g.Key(ticketID)
	token := uuid.NewString()

	acquired, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.client, []string{key}, token).Err()
	}, true, nil
}
