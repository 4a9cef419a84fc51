package cache

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/racksizer/pkg/rack"
)

func init() {
	retryDelay = time.Millisecond
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, _ := c.Get(ctx, "missing"); hit {
		t.Error("unexpected hit on empty cache")
	}

	if err := c.Set(ctx, "k", []byte(`{"a":1}`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != `{"a":1}` {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("hit after Delete")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Set(ctx, "short", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("short")); !os.IsNotExist(err) {
		t.Error("expired entry not removed from disk")
	}

	if err := c.Set(ctx, "forever", []byte("y"), 0); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("zero ttl entry should not expire")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path("k"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v, want miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}

	n, err := c.Clear()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	entries, _ := os.ReadDir(c.Dir())
	if len(entries) != 0 {
		t.Errorf("%d entries left after Clear", len(entries))
	}
}

type ttlRecorder struct {
	NullCache
	ttls []time.Duration
}

func (r *ttlRecorder) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	r.ttls = append(r.ttls, ttl)
	return nil
}

func TestWithTTL(t *testing.T) {
	ctx := context.Background()
	rec := &ttlRecorder{}

	if WithTTL(rec, 0) != Cache(rec) {
		t.Error("zero ttl should return the cache unchanged")
	}

	c := WithTTL(rec, time.Minute)
	_ = c.Set(ctx, "a", []byte("x"), TTLSolve)
	_ = c.Set(ctx, "b", []byte("x"), time.Second)
	for i, ttl := range rec.ttls {
		if ttl != time.Minute {
			t.Errorf("write %d ttl = %v, want 1m", i, ttl)
		}
	}
	if len(rec.ttls) != 2 {
		t.Errorf("got %d writes, want 2", len(rec.ttls))
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// SHA-256 produces 64 hex chars
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func testConfig(key string) rack.Configuration {
	return rack.Configuration{
		Key:        key,
		ToteWidth:  400,
		ToteLength: 600,
		ToteHeight: 300,
	}.WithDefaults()
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	cfg := testConfig("std")
	opts := SolveKeyOpts{Storage: 5000, Throughput: 200, AspectRatio: 1, Height: 10000}

	if k.SolveKey(cfg, opts) != k.SolveKey(cfg, opts) {
		t.Error("SolveKey should be deterministic")
	}
	if !strings.HasPrefix(k.SolveKey(cfg, opts), "solve:") {
		t.Errorf("SolveKey prefix: %s", k.SolveKey(cfg, opts))
	}

	flagged := opts
	flagged.ReduceLevels = true
	if k.SolveKey(cfg, opts) == k.SolveKey(cfg, flagged) {
		t.Error("Different flags should produce different keys")
	}

	edited := cfg.Clone()
	edited.AisleWidth = 1500
	if k.SolveKey(cfg, opts) == k.SolveKey(edited, opts) {
		t.Error("Editing a configuration field should change the key")
	}

	restyled := cfg.Clone()
	restyled.Export.Styles[rack.BayTunnel] = rack.Style{Block: "Tunnel", Color: 1}
	if k.ExportKey(cfg, ExportKeyOpts{Length: 1, Width: 1}) == k.ExportKey(restyled, ExportKeyOpts{Length: 1, Width: 1}) {
		t.Error("Export styling should be part of the export key")
	}

	a, b := testConfig("a"), testConfig("b")
	if k.CompareKey([]rack.Configuration{a, b}, opts) == k.CompareKey([]rack.Configuration{b, a}, opts) {
		t.Error("Configuration order should be part of the compare key")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "tenant:123:")
	cfg := testConfig("std")

	key := scoped.SolveKey(cfg, SolveKeyOpts{})
	if key != "tenant:123:"+inner.SolveKey(cfg, SolveKeyOpts{}) {
		t.Errorf("ScopedKeyer SolveKey unexpected: %s", key)
	}
	if !strings.HasPrefix(scoped.CompareKey(nil, SolveKeyOpts{}), "tenant:123:compare:") {
		t.Error("CompareKey should be prefixed")
	}
	if !strings.HasPrefix(scoped.ExportKey(cfg, ExportKeyOpts{}), "tenant:123:export:") {
		t.Error("ExportKey should be prefixed")
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	cfg := testConfig("std")
	want := "prefix:" + NewDefaultKeyer().SolveKey(cfg, SolveKeyOpts{})
	if key := scoped.SolveKey(cfg, SolveKeyOpts{}); key != want {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(ErrUnavailable)
	if err == nil {
		t.Fatal("Retryable should return wrapped error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapped error should unwrap to the sentinel")
	}
	if err.Error() != ErrUnavailable.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}

	if IsRetryable(ErrCorrupt) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should call once: %d", calls)
	}

	// Non-retryable error stops immediately
	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return ErrCorrupt
	})
	if err != ErrCorrupt {
		t.Errorf("Should return non-retryable error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should not retry non-retryable error: %d", calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrUnavailable)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("Should retry once: %d", calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(ErrUnavailable)
	})
	if !errors.Is(err, ErrUnavailable) || calls != 3 {
		t.Errorf("exhausted retries: err=%v calls=%d", err, calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(ErrUnavailable)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("RACKSIZER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RACKSIZER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	key := "racksizer-test:" + t.Name()
	if err := c.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "v" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("hit after Delete")
	}
}
