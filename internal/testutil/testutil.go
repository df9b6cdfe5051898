// Package testutil provides clocks and Redis helpers shared by synergy-web tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

// TestTime returns the fixed instant tests anchor join dates and sessions on.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// FixedTimeFunc returns a clock that never moves.
func FixedTimeFunc(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Clock is a manually advanced clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// requireRedis turns a missing Redis into a failure instead of a skip (CI).
func requireRedis() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// redisCandidates lists the addresses probed in order. REDIS_ADDR wins when set.
func redisCandidates() []string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return []string{addr}
	}
	local := os.Getenv("TEST_REDIS_LOCAL_ADDR")
	if local == "" {
		local = "localhost:56379"
	}
	return []string{"redis:6379", "localhost:6379", local}
}

// GetTestRedisAddr returns the first reachable Redis address and whether one was found.
func GetTestRedisAddr(t testing.TB) (string, bool) {
	t.Helper()
	candidates := redisCandidates()
	for _, addr := range candidates {
		if err := pingRedis(addr); err != nil {
			t.Logf("redis not available at %s: %v", addr, err)
			continue
		}
		return addr, true
	}
	return candidates[len(candidates)-1], false
}

func pingRedis(addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// KeyPrefix returns a key prefix unique to t and this process. Tests sharing
// one Redis database stay isolated by writing only under their prefix.
func KeyPrefix(t testing.TB) string {
	name := strings.NewReplacer("/", ":", " ", "_").Replace(t.Name())
	return fmt.Sprintf("synergy:test:%d:%s:", os.Getpid(), name)
}

// SetupTestRedis connects to a test Redis, skipping t when none is reachable.
// Keys under KeyPrefix(t) are deleted when t finishes; the client is closed too.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	addr, ok := GetTestRedisAddr(t)
	if !ok {
		if requireRedis() {
			t.Fatal("redis not available for testing")
		}
		t.Skip("redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	prefix := KeyPrefix(t)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		defer cancel()
		if n, err := deletePrefix(ctx, client, prefix); err != nil {
			t.Logf("warning: cleanup of %s* failed after %d keys: %v", prefix, n, err)
		}
		_ = client.Close()
	})
	return client
}

func deletePrefix(ctx context.Context, client *redis.Client, prefix string) (int, error) {
	deleted := 0
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, iter.Err()
}
