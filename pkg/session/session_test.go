package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/solver"
)

func testRun(ttl time.Duration) *Run {
	cfg := rack.Configuration{Key: "std", ToteWidth: 400, ToteLength: 600, ToteHeight: 300}.WithDefaults()
	return New(cfg, solver.Request{StorageRequirement: 10}, &solver.Result{ConfigKey: "std"}, ttl)
}

func TestNew(t *testing.T) {
	run := testRun(time.Minute)
	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("ID %q is not a uuid: %v", run.ID, err)
	}
	if run.Request.Config.Key != "std" {
		t.Error("request should carry the configuration snapshot")
	}
	if got := run.ExpiresAt.Sub(run.CreatedAt); got != time.Minute {
		t.Errorf("ttl = %v", got)
	}
	if testRun(0).ExpiresAt.Sub(testRun(0).CreatedAt) != DefaultTTL {
		t.Error("zero ttl should use DefaultTTL")
	}
	if testRun(time.Minute).ID == run.ID {
		t.Error("IDs must be unique")
	}
}

func TestNewSnapshotsConfig(t *testing.T) {
	cfg := rack.Configuration{Key: "std", ToteWidth: 400, ToteLength: 600, ToteHeight: 300}.WithDefaults()
	run := New(cfg, solver.Request{}, &solver.Result{}, time.Minute)
	cfg.Export.Styles[rack.BayStandard] = rack.Style{Block: "changed"}
	if run.Config.StyleFor(rack.BayStandard).Block != rack.DefaultBlock {
		t.Error("run configuration shares state with the caller")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	run := testRun(time.Minute)

	if _, err := s.Get(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get on empty store: %v", err)
	}
	if err := s.Set(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, run.ID)
	if err != nil || got != run {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := s.Delete(ctx, run.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	live, dead := testRun(time.Hour), testRun(time.Minute)
	_ = s.Set(ctx, live)
	_ = s.Set(ctx, dead)

	now = now.Add(30 * time.Minute)
	if _, err := s.Get(ctx, dead.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired run returned: %v", err)
	}
	if _, err := s.Get(ctx, live.ID); err != nil {
		t.Errorf("live run: %v", err)
	}

	removed, err := s.Cleanup(ctx)
	if err != nil || removed != 1 {
		t.Errorf("Cleanup = %d, %v", removed, err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d after cleanup", s.Len())
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Set(context.Background(), testRun(time.Nanosecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Sweep(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if s.Len() != 0 {
		t.Error("Sweep did not remove the expired run")
	}
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run := testRun(time.Minute)
			_ = s.Set(ctx, run)
			if _, err := s.Get(ctx, run.ID); err != nil {
				t.Error(err)
			}
			_, _ = s.Cleanup(ctx)
		}()
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Errorf("Len() = %d, want 50", s.Len())
	}
}
