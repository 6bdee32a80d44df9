// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/durak/internal/auth"
	"github.com/jason-s-yu/durak/internal/cache"
	"github.com/jason-s-yu/durak/internal/config"
	"github.com/jason-s-yu/durak/internal/database"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/handlers"
	"github.com/jason-s-yu/durak/internal/middleware"
	"github.com/jason-s-yu/durak/internal/session"
	"github.com/jason-s-yu/durak/internal/settlement"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	if cfg.AuthKeysConfigured() {
		err = auth.InitFromPath(cfg.AuthPrivateKey, cfg.AuthPublicKey, cfg.TokenExpire)
	} else {
		logger.Warn("AUTH_PRIVATE_KEY not set, signing tokens with a throwaway key")
		err = auth.Init(cfg.TokenExpire)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := session.DefaultOptions()
	opts.DisconnectGrace = cfg.DisconnectGrace
	opts.EnforceMoveTimer = cfg.EnforceMoveTimer

	workerDone := make(chan struct{})
	close(workerDone)
	var dispatcher *settlement.Dispatcher

	var ledger *database.Ledger
	if cfg.PostgresEnabled() {
		pool, err := database.Connect(ctx, cfg.PostgresURL())
		if err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		ledger = database.NewLedger(pool)
	}

	switch {
	case cfg.RedisEnabled():
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		opts.Actions = cache.NewActionLog(rdb, cfg.ActionQueue)
		// cmd/settler drains the queue
		dispatcher = settlement.NewDispatcher(cache.NewSettlementQueue(rdb, cfg.SettlementQueue), logger)
		logger.Infof("settlements published to redis list %s", cfg.SettlementQueue)

	case ledger != nil:
		queue := settlement.NewLocalQueue(256)
		worker := settlement.NewWorker(queue, ledger, logger)
		worker.MaxAttempts = cfg.SettlementMaxAttempts
		worker.PopTimeout = cfg.SettlementPopTimeout
		worker.RetryBase = cfg.SettlementRetryBase
		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			worker.Run(ctx)
		}()
		dispatcher = settlement.NewDispatcher(queue, logger)
		logger.Info("settlements handled in-process")

	default:
		logger.Warn("neither REDIS_ADDR nor PG_HOST set, finished games will not be settled")
	}
	if dispatcher != nil {
		opts.Settlement = dispatcher
	}

	store := game.NewGameStore()
	hub := session.NewHub(store, logger, opts)
	gs := handlers.NewGameServer(store, hub, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))
	r.Use(middleware.LogMiddleware(logger))

	r.Get("/game/ws", handlers.GameWSHandler(logger, gs, originHosts(cfg)))
	r.Get("/games", handlers.ListGamesHandler(gs))
	r.Get("/health", handlers.HealthHandler(gs))
	if ledger != nil {
		r.Get("/users/{id}", handlers.UserHandler(logger, ledger))
		r.Get("/leaderboard", handlers.LeaderboardHandler(logger, ledger))
	}

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	go func() {
		logger.Infof("Running on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	hub.Close()
	if dispatcher != nil {
		dispatcher.Wait()
	}
	<-workerDone
}

// originHosts turns the CORS origins into the host patterns websocket.Accept checks.
func originHosts(cfg config.Config) []string {
	if !cfg.Production() {
		return []string{"*"}
	}
	hosts := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimPrefix(o, "https://")
		hosts = append(hosts, strings.TrimPrefix(o, "http://"))
	}
	return hosts
}
