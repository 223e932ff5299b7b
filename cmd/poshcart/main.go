package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	cartapp "github.com/poshpearl/poshcart/internal/cart/app"
	cartsync "github.com/poshpearl/poshcart/internal/cart/sync"
	catalogapp "github.com/poshpearl/poshcart/internal/catalog/app"
	"github.com/poshpearl/poshcart/internal/server"
	"github.com/poshpearl/poshcart/pkg/config"
	"github.com/poshpearl/poshcart/pkg/logger"
	"github.com/poshpearl/poshcart/pkg/shutdown"
	"github.com/poshpearl/poshcart/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service:   "poshcart",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	root := context.Background()
	ctx, cancel := shutdown.WithSignals(root)
	defer cancel()

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error("storage init failed", slog.Any("err", err))
		os.Exit(1)
	}

	catalog := catalogapp.NewService(store, log)
	if _, err := catalog.Load(ctx); err != nil {
		log.Error("catalog load failed", slog.Any("err", err))
		os.Exit(1)
	}

	carts := server.NewCartManager(catalog, store, log)
	if cfg.CartAPIBaseURL != "" {
		log.Info("mirroring carts upstream", slog.String("base_url", cfg.CartAPIBaseURL))
		carts.WithSync(func(cart *cartapp.Service) *cartsync.Service {
			client := cartsync.NewClient(cfg.CartAPIBaseURL, cfg.CSRFToken, nil)
			notify := cartapp.NotifierFunc(func(msg string) {
				log.Warn("cart sync", slog.String("msg", msg))
			})
			return cartsync.NewService(client, cart, notify, log)
		})
	}

	srv := server.New(catalog, carts, log, cfg.WhatsAppPhone)

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}
	carts.Drain()

	wg.Wait()
	log.Info("bye")
}

// newStore picks the persistence backend: redis when configured, JSON files
// under the data dir otherwise.
func newStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Store, error) {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		log.Info("using redis storage", slog.String("addr", cfg.RedisAddr))
		return storage.NewRedis(rdb), nil
	}
	log.Info("using file storage", slog.String("dir", cfg.DataDir))
	return storage.NewFile(cfg.DataDir)
}
