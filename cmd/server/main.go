package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/parking-schedule/internal/catalog"
	"github.com/iliyamo/parking-schedule/internal/config"
	"github.com/iliyamo/parking-schedule/internal/database"
	"github.com/iliyamo/parking-schedule/internal/handler"
	"github.com/iliyamo/parking-schedule/internal/middleware"
	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/queue"
	"github.com/iliyamo/parking-schedule/internal/remote"
	"github.com/iliyamo/parking-schedule/internal/repository"
	"github.com/iliyamo/parking-schedule/internal/router"
	"github.com/iliyamo/parking-schedule/internal/service"
	"github.com/iliyamo/parking-schedule/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		if cat, err = catalog.Load(cfg.CatalogFile); err != nil {
			log.Fatalf("catalog: %v", err)
		}
	}

	// Redis is optional for the cache and rate limiter but required when it
	// also holds the schedule.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Printf("redis: unavailable at %s; cache and rate limiting disabled", cfg.Redis.Addr)
	} else {
		defer rdb.Close()
	}

	blob, closeBlob, err := openBlob(ctx, cfg, rdb)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeBlob()

	st := store.New(blob, store.WithKnownSpots(cat.Contains))
	loaded := st.Load(ctx)
	log.Printf("storage: %s backend, %d dates loaded", cfg.StorageBackend, len(loaded))

	svc := service.NewScheduleService(st, cat, cfg.Location)

	respCache := middleware.NewResponseCache(cfg.Cache, rdb)
	st.Subscribe(respCache.PurgeOnChange)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, rdb)

	hub := remote.NewHub(st, cat)
	defer hub.Close()

	var channel *remote.Channel
	if cfg.Sync.Enabled {
		channel = remote.NewChannel(st, remote.Config{
			Endpoint:    cfg.Sync.Endpoint,
			BaseDelay:   cfg.Sync.BaseDelay,
			MaxAttempts: cfg.Sync.MaxAttempts,
			DialTimeout: cfg.Sync.DialTimeout,
			Catalog:     cat,
			DateKey:     svc.Today,
		})
		channel.Start(ctx)
		defer channel.Close()
	}

	if cfg.Audit.Enabled {
		st.Subscribe(service.AuditListener(cfg.Audit.URL))
		go func() {
			if err := queue.StartChangeConsumer(ctx, cfg.Audit.URL, cfg.Audit.LogDir); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("change-consumer: stopped: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e)
	router.RegisterSchedule(e, handler.NewScheduleHandler(svc), respCache.Middleware(), limiter.Middleware())
	router.RegisterSync(e, &handler.SyncHandler{Channel: channel, Hub: hub}, hub)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, tz=%s, today=%s)", addr, cfg.Env, cfg.Location, model.DateKey(time.Now().In(cfg.Location)))

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// openBlob returns the configured durable backend and a function releasing
// its resources.
func openBlob(ctx context.Context, cfg config.Config, rdb *redis.Client) (store.Blob, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return repository.NewMemoryBlobRepo(), noop, nil
	case config.BackendRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis backend selected but %s is unreachable", cfg.Redis.Addr)
		}
		return repository.NewRedisBlobRepo(rdb, cfg.StorageKey), noop, nil
	case config.BackendMySQL:
		db, err := database.Open(ctx, database.Params{
			User: cfg.DBUser,
			Pass: cfg.DBPass,
			Host: cfg.DBHost,
			Port: cfg.DBPort,
			Name: cfg.DBName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("mysql: %w", err)
		}
		repo := repository.NewMySQLBlobRepo(db, cfg.StorageKey)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("mysql schema: %w", err)
		}
		return repo, func() { _ = db.Close() }, nil
	default:
		return repository.NewFileBlobRepo(cfg.StoragePath), noop, nil
	}
}
