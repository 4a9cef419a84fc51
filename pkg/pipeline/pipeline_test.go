package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/racksizer/pkg/cache"
	"github.com/matzehuels/racksizer/pkg/catalog"
	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/observability"
	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/solver"
)

func testConfig(key string, mode rack.LayoutMode) rack.Configuration {
	return rack.Configuration{
		Key:               key,
		ToteWidth:         400,
		ToteLength:        600,
		ToteHeight:        300,
		ToteQtyPerBay:     2,
		TotesDeep:         2,
		ToteToToteDist:    50,
		ToteToUprightDist: 25,
		UprightLength:     100,
		UprightWidth:      100,
		AisleWidth:        1000,
		FlueSpace:         100,
		LayoutMode:        mode,
		BaseBeamHeight:    200,
		BeamWidth:         100,
		MinClearance:      100,
		OverheadClearance: 500,
		MaxPerfDensity:    50,
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		testConfig("std", rack.LayoutSingle),
		testConfig("dbl", rack.LayoutDouble),
		testConfig("sds", rack.LayoutSingleDoubleSingle),
	)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func solveOpts(t *testing.T) Options {
	return Options{
		Storage:    5000,
		Throughput: 200,
		Height:     10000,
		ConfigKey:  "std",
		Catalog:    testCatalog(t),
	}
}

func TestSetSolveDefaults(t *testing.T) {
	var opts Options
	opts.SetSolveDefaults()
	if opts.AspectRatio != DefaultAspectRatio {
		t.Errorf("AspectRatio = %v, want %v", opts.AspectRatio, DefaultAspectRatio)
	}
	if opts.Logger == nil || opts.Catalog == nil {
		t.Error("runtime defaults not set")
	}

	opts = Options{AspectRatio: 2}
	opts.SetSolveDefaults()
	if opts.AspectRatio != 2 {
		t.Error("explicit aspect ratio overwritten")
	}
}

func TestValidateForSolve(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		code   errors.Code
	}{
		{"valid", func(*Options) {}, ""},
		{"zero storage", func(o *Options) { o.Storage = 0 }, errors.ErrCodeInvalidInput},
		{"zero throughput", func(o *Options) { o.Throughput = 0 }, errors.ErrCodeInvalidInput},
		{"negative aspect", func(o *Options) { o.AspectRatio = -1 }, errors.ErrCodeInvalidInput},
		{"zero height", func(o *Options) { o.Height = 0 }, errors.ErrCodeInvalidInput},
		{"half bound", func(o *Options) { o.BoundLength = 20000 }, errors.ErrCodeInvalidInput},
		{"negative bound", func(o *Options) { o.BoundLength, o.BoundWidth = -1, 100 }, errors.ErrCodeInvalidInput},
		{"no config", func(o *Options) { o.ConfigKey = "" }, errors.ErrCodeNoConfigurationSelected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := solveOpts(t)
			tt.modify(&opts)
			err := opts.ValidateForSolve()
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestValidateForExport(t *testing.T) {
	opts := Options{ConfigKey: "std", Length: 20000, Width: 10000, Height: 10000}
	if err := opts.ValidateForExport(); err != nil {
		t.Fatal(err)
	}

	bad := opts
	bad.Width = 0
	if err := bad.ValidateForExport(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("zero width: %v", err)
	}
	bad = opts
	bad.Levels = -2
	if err := bad.ValidateForExport(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("negative levels: %v", err)
	}
	bad = opts
	bad.ConfigKey = ""
	if err := bad.ValidateForExport(); !errors.Is(err, errors.ErrCodeNoConfigurationSelected) {
		t.Errorf("no config: %v", err)
	}
}

func TestOptionsRequest(t *testing.T) {
	opts := solveOpts(t)
	opts.ReduceLevels = true
	opts.BoundLength, opts.BoundWidth = 30000, 20000
	opts.SetSolveDefaults()

	req := opts.Request(testConfig("std", rack.LayoutSingle))
	if req.StorageRequirement != 5000 || req.AspectRatio != 1 || !req.Flags.ReduceLevels {
		t.Errorf("request = %+v", req)
	}
	if req.Bound == nil || req.Bound.Length != 30000 || req.Bound.Width != 20000 {
		t.Errorf("bound = %+v", req.Bound)
	}

	opts.BoundLength, opts.BoundWidth = 0, 0
	if opts.Bound() != nil {
		t.Error("zero bound should be nil")
	}
}

func TestSolveMatchesSolver(t *testing.T) {
	opts := solveOpts(t)
	res, err := Solve(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	cfg, _ := opts.Catalog.Get("std")
	opts.SetSolveDefaults()
	want, err := solver.Solve(context.Background(), opts.Request(cfg), solver.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Footprint != want.Footprint || res.TotalLocations != want.TotalLocations {
		t.Errorf("pipeline %+v, solver %+v", res.Footprint, want.Footprint)
	}
}

func TestSolveUnknownConfig(t *testing.T) {
	opts := solveOpts(t)
	opts.ConfigKey = "missing"
	if _, err := Solve(context.Background(), opts); !errors.Is(err, errors.ErrCodeUnknownConfiguration) {
		t.Errorf("error = %v, want UNKNOWN_CONFIGURATION", err)
	}
}

// countingCache wraps a cache and counts operations.
type countingCache struct {
	cache.Cache
	gets, sets atomic.Int32
	failGet    bool
	failSet    bool
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets.Add(1)
	if c.failGet {
		return nil, false, cache.ErrUnavailable
	}
	return c.Cache.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.sets.Add(1)
	if c.failSet {
		return cache.ErrUnavailable
	}
	return c.Cache.Set(ctx, key, data, ttl)
}

func newFileCache(t *testing.T) cache.Cache {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fc
}

func TestRunnerSolveCaches(t *testing.T) {
	ctx := context.Background()
	cc := &countingCache{Cache: newFileCache(t)}
	r := NewRunner(cc, nil, nil)
	defer r.Close()

	first, hit, err := r.SolveWithCacheInfo(ctx, solveOpts(t))
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first solve should miss")
	}

	second, hit, err := r.SolveWithCacheInfo(ctx, solveOpts(t))
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second solve should hit")
	}
	if second.Footprint != first.Footprint || second.TotalLocations != first.TotalLocations ||
		second.Outcome != first.Outcome || second.Density != first.Density {
		t.Errorf("cached result %+v differs from computed %+v", second, first)
	}

	refresh := solveOpts(t)
	refresh.Refresh = true
	if _, hit, _ := r.SolveWithCacheInfo(ctx, refresh); hit {
		t.Error("refresh should bypass the cache")
	}

	changed := solveOpts(t)
	changed.Storage = 6000
	if _, hit, _ := r.SolveWithCacheInfo(ctx, changed); hit {
		t.Error("different storage should miss")
	}
}

func TestRunnerCacheFailuresDoNotFail(t *testing.T) {
	cc := &countingCache{Cache: cache.NewNullCache(), failGet: true, failSet: true}
	r := NewRunner(cc, nil, nil)

	res, hit, err := r.SolveWithCacheInfo(context.Background(), solveOpts(t))
	if err != nil {
		t.Fatalf("cache failure surfaced: %v", err)
	}
	if hit || res == nil {
		t.Errorf("hit=%v res=%v", hit, res)
	}
	if cc.gets.Load() != 1 || cc.sets.Load() != 1 {
		t.Errorf("gets=%d sets=%d", cc.gets.Load(), cc.sets.Load())
	}
}

func TestRunnerDoesNotCacheFailures(t *testing.T) {
	cc := &countingCache{Cache: newFileCache(t)}
	r := NewRunner(cc, nil, nil)

	opts := solveOpts(t)
	opts.Height = 500 // no level fits
	for range 2 {
		if _, _, err := r.SolveWithCacheInfo(context.Background(), opts); !errors.Is(err, errors.ErrCodeStorageUnattainable) {
			t.Fatalf("error = %v", err)
		}
	}
	if cc.sets.Load() != 0 {
		t.Errorf("failed solve was cached %d times", cc.sets.Load())
	}
}

func TestRunnerSolveSteps(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	var steps []solver.Step
	opts := solveOpts(t)
	opts.OnStep = func(s solver.Step) { steps = append(steps, s) }

	res, err := r.Solve(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != res.Iterations {
		t.Errorf("got %d steps, result reports %d iterations", len(steps), res.Iterations)
	}
}

func TestRunnerConcurrentSolves(t *testing.T) {
	r := NewRunner(newFileCache(t), nil, nil)
	opts := solveOpts(t)
	var wg sync.WaitGroup
	results := make([]*solver.Result, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = r.Solve(context.Background(), opts)
		}()
	}
	wg.Wait()
	for i := range results {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if results[i].Footprint != results[0].Footprint {
			t.Errorf("result %d differs", i)
		}
	}
}

// blockingSolverHooks holds every scan at its first step until release is
// closed.
type blockingSolverHooks struct {
	observability.NoopSolverHooks
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	starts  atomic.Int32
}

func (h *blockingSolverHooks) OnSolveStart(context.Context, string) {
	h.starts.Add(1)
}

func (h *blockingSolverHooks) OnStep(context.Context, string, string, int) {
	h.once.Do(func() { close(h.entered) })
	<-h.release
}

func TestRunnerSharedSolveSurvivesCallerCancel(t *testing.T) {
	hooks := &blockingSolverHooks{entered: make(chan struct{}), release: make(chan struct{})}
	observability.SetSolverHooks(hooks)
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { close(hooks.release) }) }
	t.Cleanup(func() {
		release()
		observability.Reset()
	})

	r := NewRunner(nil, nil, nil)
	opts := solveOpts(t)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := r.Solve(ctxA, opts)
		errA <- err
	}()
	<-hooks.entered

	type outcome struct {
		res *solver.Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := r.Solve(context.Background(), opts)
		doneB <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond) // let the second caller join the scan

	cancelA()
	select {
	case err := <-errA:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller still waiting on the shared scan")
	}

	release()
	select {
	case b := <-doneB:
		if b.err != nil {
			t.Fatalf("other caller failed: %v", b.err)
		}
		if b.res.TotalLocations < opts.Storage {
			t.Errorf("TotalLocations = %d, want >= %d", b.res.TotalLocations, opts.Storage)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shared scan never finished")
	}
	if n := hooks.starts.Load(); n != 1 {
		t.Errorf("scan started %d times, want 1", n)
	}
}

func TestRunnerCompare(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newFileCache(t), nil, nil)
	opts := solveOpts(t)
	opts.ConfigKey = ""

	res, hit, err := r.CompareWithCacheInfo(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if hit || len(res.Ranked) != 3 {
		t.Fatalf("hit=%v ranked=%d", hit, len(res.Ranked))
	}
	for i := 1; i < len(res.Ranked); i++ {
		if res.Ranked[i-1].FootprintM2 > res.Ranked[i].FootprintM2 {
			t.Error("ranking not ascending")
		}
	}

	again, hit, err := r.CompareWithCacheInfo(ctx, opts)
	if err != nil || !hit {
		t.Fatalf("second compare: hit=%v err=%v", hit, err)
	}
	for i := range res.Ranked {
		if again.Ranked[i].ConfigKey != res.Ranked[i].ConfigKey {
			t.Errorf("cached ranking differs at %d", i)
		}
	}

	subset := opts
	subset.ConfigKeys = []string{"dbl"}
	sub, err := r.Compare(ctx, subset)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Ranked) != 1 || sub.Ranked[0].ConfigKey != "dbl" {
		t.Errorf("subset ranking = %+v", sub.Ranked)
	}

	subset.ConfigKeys = []string{"nope"}
	if _, err := r.Compare(ctx, subset); !errors.Is(err, errors.ErrCodeUnknownConfiguration) {
		t.Errorf("unknown subset: %v", err)
	}
}

func TestRunnerExport(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newFileCache(t), nil, nil)
	opts := Options{
		ConfigKey: "std",
		Length:    13000,
		Width:     13000,
		Height:    10000,
		Catalog:   testCatalog(t),
	}

	res, hit, err := r.ExportWithCacheInfo(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first export should miss")
	}
	if res.Document.Count() != res.Metrics.TotalBays {
		t.Errorf("exported %d bays, metrics report %d", res.Document.Count(), res.Metrics.TotalBays)
	}
	if res.Text != res.Document.String() {
		t.Error("Text does not match document")
	}

	again, hit, err := r.ExportWithCacheInfo(ctx, opts)
	if err != nil || !hit {
		t.Fatalf("hit=%v err=%v", hit, err)
	}
	if again.Text != res.Text {
		t.Error("cached export text differs")
	}

	over := opts
	over.Levels = 100
	if _, err := r.Export(ctx, over); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("level override above maximum: %v", err)
	}
}

func TestExportSolved(t *testing.T) {
	opts := solveOpts(t)
	opts.ReduceLevels = true
	res, err := Solve(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _ := opts.Catalog.Get("std")

	exp, err := ExportSolved(cfg, res)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Metrics.Levels != res.Levels || exp.Metrics.TotalLocations != res.TotalLocations {
		t.Errorf("export summary %d levels / %d locations, solve %d / %d",
			exp.Metrics.Levels, exp.Metrics.TotalLocations, res.Levels, res.TotalLocations)
	}
	if exp.Document.Count() != res.TotalBays {
		t.Errorf("exported %d bays, want %d", exp.Document.Count(), res.TotalBays)
	}
}

type recordingCacheHooks struct {
	observability.NoopCacheHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingCacheHooks) OnCacheHit(_ context.Context, kind string) {
	h.record("hit:" + kind)
}

func (h *recordingCacheHooks) OnCacheMiss(_ context.Context, kind string) {
	h.record("miss:" + kind)
}

func (h *recordingCacheHooks) OnCacheSet(_ context.Context, kind string, _ int) {
	h.record("set:" + kind)
}

func (h *recordingCacheHooks) record(e string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func TestRunnerCacheHooks(t *testing.T) {
	hooks := &recordingCacheHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	r := NewRunner(newFileCache(t), nil, nil)
	for range 2 {
		if _, err := r.Solve(context.Background(), solveOpts(t)); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"miss:solve", "set:solve", "hit:solve"}
	if len(hooks.events) != len(want) {
		t.Fatalf("events = %v, want %v", hooks.events, want)
	}
	for i := range want {
		if hooks.events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, hooks.events[i], want[i])
		}
	}
}
