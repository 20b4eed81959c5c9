package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/auth"
	"github.com/md-rashed-zaman/salonconsole/libs/config"
	"github.com/md-rashed-zaman/salonconsole/libs/httpx"
	otelx "github.com/md-rashed-zaman/salonconsole/libs/otel"
	"github.com/md-rashed-zaman/salonconsole/libs/runtime"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/console"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/credentials"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/handlers"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/roster"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/settings"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/storeclient"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	service := config.String("SERVICE_NAME", "console-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := config.Location("CONSOLE_TIMEZONE")
	if err != nil {
		panic(err)
	}

	staff := roster.Default()
	if path := config.String("STAFF_ROSTER_PATH", ""); path != "" {
		staff, err = roster.Load(path)
		if err != nil {
			logger.Error("roster load failed", "err", err, "path", path)
			panic(err)
		}
	}

	storeAddr := config.String("STORE_GRPC_ADDR", "localhost:9091")
	store, err := storeclient.Dial(storeAddr, config.Duration("STORE_CALL_TIMEOUT", storeclient.DefaultTimeout), logger)
	if err != nil {
		logger.Error("store client init failed", "err", err, "addr", storeAddr)
		panic(err)
	}
	defer func() { _ = store.Close() }()

	tokenSecret, err := config.RequiredString("TOKEN_SECRET")
	if err != nil {
		panic(err)
	}
	tokens, err := auth.NewIssuer(tokenSecret, config.Duration("TOKEN_TTL", 12*time.Hour))
	if err != nil {
		panic(err)
	}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	failOpen := config.Bool("RATE_LIMIT_FAIL_OPEN", true)

	var (
		settingsStore settings.Store
		limiter       httpx.Limiter
		checks        []runtime.ReadyCheck
	)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		settingsStore = settings.NewRedisStore(rdb, config.String("SETTINGS_PREFIX", ""))
		limiter = httpx.NewRedisLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: settings.ReadyCheck(rdb)})
		logger.Info("settings and rate limiting backed by redis", "redis_addr", addr, "per_minute", limitPerMinute)
	} else {
		settingsStore = settings.NewMemoryStore()
		limiter = httpx.NewMemoryLimiter(limitPerMinute, time.Minute)
		logger.Warn("REDIS_ADDR not set; passwords are kept in memory and reset on restart")
	}

	creds := credentials.NewResolver(settingsStore, logger, config.Int("BCRYPT_COST", bcrypt.DefaultCost))
	sessions := console.NewManager(console.Deps{
		Store:    store,
		Auth:     creds,
		Roster:   staff,
		Logger:   logger,
		Location: loc,
	})
	go sessions.RunSweeper(ctx, config.Duration("SESSION_IDLE_TTL", 8*time.Hour), time.Minute)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.NewConsoleHandler(sessions, staff, creds, tokens, logger, loc).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithRecover(logger),
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: config.List("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			MaxAge:         config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 64<<10))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		httpx.RateLimit(limiter, logger, failOpen),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(handler, service),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "store_addr", storeAddr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped", "open_sessions", sessions.Len())
}
