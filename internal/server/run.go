package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/racksizer/pkg/cache"
	"github.com/matzehuels/racksizer/pkg/catalog"
	"github.com/matzehuels/racksizer/pkg/observability"
	"github.com/matzehuels/racksizer/pkg/pipeline"
	"github.com/matzehuels/racksizer/pkg/session"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// redisKeyPrefix namespaces result keys in a shared Redis.
const redisKeyPrefix = "racksizer:"

// Run builds the server from cfg and serves on cfg.Addr until ctx is done.
func Run(ctx context.Context, cfg Config, logger *log.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return Serve(ctx, ln, cfg, logger)
}

// Serve is Run on an existing listener. The listener is closed on return.
func Serve(ctx context.Context, ln net.Listener, cfg Config, logger *log.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	NewMetrics(reg).Install()
	defer observability.Reset()

	c, keyer, err := openCache(ctx, cfg)
	if err != nil {
		ln.Close()
		return err
	}
	runner := pipeline.NewRunner(cache.WithTTL(c, cfg.CacheTTL), keyer, logger)
	defer runner.Close()

	src, watcher, err := openCatalog(cfg, logger)
	if err != nil {
		ln.Close()
		return err
	}

	store := session.NewMemoryStore()
	srv := &http.Server{
		Handler: New(Deps{
			Runner:   runner,
			Catalog:  src,
			Runs:     store,
			RunTTL:   cfg.RunTTL,
			Logger:   logger,
			Gatherer: reg,
			Timeout:  cfg.Timeout,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("watch catalog: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		store.Sweep(gctx, sweepInterval(cfg.RunTTL))
		return nil
	})
	g.Go(func() error {
		logger.Info("listening",
			"addr", ln.Addr().String(),
			"cache", cfg.Cache,
			"catalog", src.Catalog().Source(),
			"configs", src.Catalog().Len(),
		)
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openCache opens the configured result cache backend.
func openCache(ctx context.Context, cfg Config) (cache.Cache, cache.Keyer, error) {
	switch cfg.Cache {
	case CacheFile:
		fc, err := cache.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file cache: %w", err)
		}
		return fc, cache.NewDefaultKeyer(), nil
	case CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis cache: %w", err)
		}
		return rc, cache.NewScopedKeyer(nil, redisKeyPrefix), nil
	}
	return cache.NewNullCache(), cache.NewDefaultKeyer(), nil
}

// openCatalog loads the catalog. A configured file is watched for changes.
func openCatalog(cfg Config, logger *log.Logger) (CatalogSource, *catalog.Watcher, error) {
	if cfg.CatalogPath == "" {
		return StaticCatalog(catalog.Default()), nil, nil
	}
	w, err := catalog.NewWatcher(cfg.CatalogPath, catalog.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return w, w, nil
}

// sweepInterval is how often expired runs are removed.
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), 5*time.Minute)
}
