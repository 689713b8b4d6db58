package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/boardroom/common/id"
	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/common/otel"
	"basegraph.app/boardroom/core/config"
	"basegraph.app/boardroom/core/db"
	"basegraph.app/boardroom/internal/backend"
	"basegraph.app/boardroom/internal/broadcast"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/http/middleware"
	httprouter "basegraph.app/boardroom/internal/http/router"
	"basegraph.app/boardroom/internal/persona"
	"basegraph.app/boardroom/internal/service"
	"basegraph.app/boardroom/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint, "sample_ratio", cfg.OTel.SampleRatio)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "boardroom starting", "env", cfg.Env, "service", cfg.OTel.ServiceName, "backend", cfg.Discussion.Backend)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	attempts := store.NewNopAttemptStore()
	var (
		recorder        fallback.Recorder
		attemptRecorder *store.AttemptRecorder
	)
	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to apply migrations", "error", err)
			os.Exit(1)
		}
		attempts = store.NewAttemptStore(database.Pool())
		attemptRecorder = store.NewAttemptRecorder(attempts, id.New)
		recorder = attemptRecorder
		slog.InfoContext(ctx, "database connected, recording generation attempts")
	} else {
		slog.InfoContext(ctx, "database disabled (no DATABASE_URL), attempts are not recorded")
	}

	var (
		broadcaster broadcast.Broadcaster
		subscriber  broadcast.Subscriber
		onEvict     func(int64)
	)
	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		redisBroadcaster := broadcast.NewRedisBroadcaster(redisClient, cfg.Redis.StreamPrefix, cfg.Redis.StreamMaxLen)
		broadcaster, onEvict = redisBroadcaster, redisBroadcaster.Forget
		subscriber = broadcast.NewRedisSubscriber(redisClient, cfg.Redis.StreamPrefix)
		slog.InfoContext(ctx, "redis connected", "stream_prefix", cfg.Redis.StreamPrefix)
	} else {
		hub := broadcast.NewHub(0)
		broadcaster, subscriber, onEvict = hub, hub, hub.Forget
		slog.InfoContext(ctx, "redis disabled, streaming from in-process hub")
	}

	discussionBackend, err := backend.FromConfig(cfg, nil, recorder)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build discussion backend", "error", err)
		os.Exit(1)
	}

	personas := persona.Default()
	if cfg.Discussion.PersonasFile != "" {
		personas, err = persona.Load(cfg.Discussion.PersonasFile)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load personas", "error", err)
			os.Exit(1)
		}
	}

	summaryCandidates, err := backend.SummaryCandidates(cfg, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build summary candidates", "error", err)
		os.Exit(1)
	}

	fallbackOpts := []fallback.Option{fallback.WithTimeout(cfg.Discussion.CandidateTimeout)}
	if recorder != nil {
		fallbackOpts = append(fallbackOpts, fallback.WithRecorder(recorder))
	}

	discussions := service.NewDiscussionService(discussionBackend, personas, broadcaster, service.Options{
		MaxConcurrent:     cfg.Discussion.MaxConcurrent,
		SummaryCandidates: summaryCandidates,
		Fallback:          fallback.New(fallbackOpts...),
		Attempts:          attempts,
		OnEvict:           onEvict,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, discussions, subscriber)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No write timeout: event streams and ?wait=true stay open for the whole discussion.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := discussions.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "discussion shutdown error", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if attemptRecorder != nil {
		if err := attemptRecorder.Wait(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "attempt recorder shutdown error", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, discussions service.DiscussionService, subscriber broadcast.Subscriber) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, httprouter.RouterConfig{
		Discussions: discussions,
		Subscriber:  subscriber,
	})

	return router
}

const banner = `
 ____   ___    _    ____  ____  ____   ___   ___  __  __
| __ ) / _ \  / \  |  _ \|  _ \|  _ \ / _ \ / _ \|  \/  |
|  _ \| | | |/ _ \ | |_) | | | | |_) | | | | | | | |\/| |
| |_) | |_| / ___ \|  _ <| |_| |  _ <| |_| | |_| | |  | |
|____/ \___/_/   \_\_| \_\____/|_| \_\\___/ \___/|_|  |_|
`
