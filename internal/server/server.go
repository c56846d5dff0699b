// Package server is the HTTP gateway: JSON endpoints for session mutations
// plus the SSE and WebSocket streams that push snapshots to watchers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/LuisNabil29/billSplitter/internal/app"
	"github.com/LuisNabil29/billSplitter/internal/config"
	apperrors "github.com/LuisNabil29/billSplitter/internal/errors"
	"github.com/LuisNabil29/billSplitter/internal/notifier"
)

// RedisHealthChecker is the slice of the Redis client used by readiness.
type RedisHealthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       *app.Service
	hub       *notifier.Hub
	limits    *StreamLimits
	redis     RedisHealthChecker // nil when the in-memory store is used
	startTime time.Time
}

func NewServer(cfg *config.Config, application *app.Service, hub *notifier.Hub, redis RedisHealthChecker) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		}))
	} else {
		e.Use(middleware.CORS())
	}

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       application,
		hub:       hub,
		limits:    NewStreamLimits(cfg.MaxStreamConnections, cfg.MaxStreamConnsPerIP, cfg.StreamConnsPerSecond, cfg.StreamConnBurst),
		redis:     redis,
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
