// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/bombchip/internal/auth"
	"github.com/jason-s-yu/bombchip/internal/cache"
	"github.com/jason-s-yu/bombchip/internal/config"
	"github.com/jason-s-yu/bombchip/internal/database"
	"github.com/jason-s-yu/bombchip/internal/game"
	"github.com/jason-s-yu/bombchip/internal/handlers"
	"github.com/jason-s-yu/bombchip/internal/lobby"
	"github.com/jason-s-yu/bombchip/internal/metrics"
	"github.com/jason-s-yu/bombchip/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.Log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authn, err := newAuthenticator(cfg, logger)
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	var store game.Store
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatalf("database: %v", err)
		}
		store = database.NewPostgresStore(pool)
		logger.Info("using postgres store")
	} else {
		store = game.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, games are kept in memory")
	}

	var (
		actions game.ActionRecorder
		limiter middleware.Limiter
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		actions = cache.NewActionPublisher(rdb, cfg.QueueName)
		limiter = cache.NewRateLimiter(rdb, cfg.APIRateLimit, cfg.APIRateWindow)
	} else {
		logger.Warn("REDIS_ADDR not set, action history and rate limiting disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New("bombchip", reg)

	rooms := lobby.NewRoomRegistry()
	conns := lobby.NewConnectionManager()
	ctrl := game.NewController(game.Options{
		Store:     store,
		Rooms:     rooms,
		Notifier:  conns,
		Actions:   actions,
		Metrics:   m,
		Logger:    logger,
		RoomTTL:   cfg.RoomTTL,
		InviteTTL: cfg.InviteTTL,
	})
	ctrl.StartSweeper(ctx, cfg.SweepInterval)

	api := &handlers.API{Logger: logger, Auth: authn, Stats: store, Invitations: store}
	logged := middleware.LogMiddleware(logger)
	limited := middleware.RateLimit(limiter, handlers.RateLimitKey(authn), logger)

	mux := http.NewServeMux()
	mux.Handle("/bombchip/ws", logged(handlers.BombChipWSHandler(handlers.WSDeps{
		Logger:         logger,
		Auth:           authn,
		Controller:     ctrl,
		Connections:    conns,
		Metrics:        m,
		OriginPatterns: cfg.WSOriginPatterns,
	})))
	mux.Handle("/bombchip/api/stats", logged(limited(http.HandlerFunc(api.StatsHandler))))
	mux.Handle("/bombchip/api/invitations", logged(limited(http.HandlerFunc(api.InvitationsHandler))))
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("bombchip server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	conns.CloseAll()
	// give the websocket handlers a moment to run their leave flows
	time.Sleep(500 * time.Millisecond)
}

func newAuthenticator(cfg config.Server, logger *logrus.Logger) (*auth.Authenticator, error) {
	if cfg.AuthPrivateKeyPath == "" || cfg.AuthPublicKeyPath == "" {
		logger.Warn("auth key paths not set, using ephemeral keys")
		return auth.NewEphemeral(cfg.TokenTTL)
	}
	return auth.NewFromPath(cfg.AuthPrivateKeyPath, cfg.AuthPublicKeyPath, cfg.TokenTTL)
}
