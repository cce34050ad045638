// Package testutil provides shared test helpers: the test Redis instance,
// sample device configurations and a seeded in-memory source of truth.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// TestRedisDB is the database the integration tests write to.
const TestRedisDB = 9

// RedisAddr returns the address of the test Redis instance from
// SOTBOARD_TEST_REDIS_ADDR, or "".
func RedisAddr() string {
	return os.Getenv("SOTBOARD_TEST_REDIS_ADDR")
}

// SkipIfNoRedis skips the test if the test Redis instance is not reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("test Redis not available: set SOTBOARD_TEST_REDIS_ADDR=host:6379")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
}

// FlushDB flushes the test database and registers a flush on cleanup.
func FlushDB(t *testing.T) {
	t.Helper()

	flush := func() {
		client := redis.NewClient(&redis.Options{Addr: RedisAddr(), DB: TestRedisDB})
		defer client.Close()
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("flushing DB %d: %v", TestRedisDB, err)
		}
	}
	flush()
	t.Cleanup(flush)
}

// Context returns a context cancelled when the test ends.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
