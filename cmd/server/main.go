package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/LuisNabil29/billSplitter/internal/app"
	"github.com/LuisNabil29/billSplitter/internal/config"
	"github.com/LuisNabil29/billSplitter/internal/domain"
	"github.com/LuisNabil29/billSplitter/internal/logging"
	"github.com/LuisNabil29/billSplitter/internal/memory"
	"github.com/LuisNabil29/billSplitter/internal/metrics"
	"github.com/LuisNabil29/billSplitter/internal/notifier"
	"github.com/LuisNabil29/billSplitter/internal/redis"
	"github.com/LuisNabil29/billSplitter/internal/server"
	"github.com/LuisNabil29/billSplitter/internal/version"
	"github.com/LuisNabil29/billSplitter/internal/vision"
)

func setupConfig() *config.Config {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, redisURL string) *goredis.Client {
	client, err := redis.NewClient(ctx, redisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupVision(cfg *config.Config) app.VisionService {
	if cfg.OpenAIAPIKey == "" {
		slog.Info("No OpenAI API key configured, receipt endpoints disabled")
		return nil
	}
	slog.Info("Vision client configured", "model", cfg.VisionModel)
	return vision.NewClient(cfg.OpenAIAPIKey, cfg.VisionModel)
}

func runGracefulShutdown(srv *server.Server, hub *notifier.Hub, relay *redis.Relay, memRepo *memory.SessionRepo) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		if relay != nil {
			relay.Close()
		}
		if memRepo != nil {
			memRepo.Stop()
		}

		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	info := version.Get()
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, runtime.Version()).Set(1)
	slog.Info("Starting billSplitter", "version", info.Version, "env", cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := clockwork.NewRealClock()

	var (
		repo        domain.SessionRepository
		memRepo     *memory.SessionRepo
		redisClient *goredis.Client
		relay       *redis.Relay
	)
	if cfg.RedisURL != "" {
		redisClient = setupRedis(ctx, cfg.RedisURL)
		repo = redis.NewSessionRepo(redisClient, cfg.SessionTTL, clock)
		slog.Info("Using Redis session store")
	} else {
		memRepo = memory.NewSessionRepo(cfg.SessionTTL, clock)
		repo = memRepo
		slog.Info("Using in-memory session store")
	}

	// The relay subscribes to a session's channel only while this instance
	// has local watchers; the hub's first/last callbacks drive that. Both
	// callbacks fire after the relay is assigned below, since nothing
	// subscribes before the server starts.
	hub := notifier.NewHub(cfg.MaxSubscribersPerSession,
		func(sessionID uuid.UUID) {
			if relay != nil {
				relay.StartSession(sessionID)
			}
		},
		func(sessionID uuid.UUID) {
			if relay != nil {
				relay.StopSession(sessionID)
			}
		},
	)
	if redisClient != nil {
		relay = redis.NewRelay(redisClient, hub.Broadcast)
	}

	visionSvc := setupVision(cfg)

	var publisher app.SnapshotPublisher
	if relay != nil {
		publisher = relay
	}
	application := app.NewService(repo, hub, publisher, visionSvc, clock)

	var healthChecker server.RedisHealthChecker
	if redisClient != nil {
		healthChecker = redisClient
	}
	srv := server.NewServer(cfg, application, hub, healthChecker)

	done := runGracefulShutdown(srv, hub, relay, memRepo)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
