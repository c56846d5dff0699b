package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Session lifecycle
	s.echo.POST("/api/session", s.handleCreateSession)
	s.echo.GET("/api/session/:id", s.handleGetSession)
	s.echo.DELETE("/api/session/:id", s.handleDeleteSession)

	// Session mutations
	s.echo.POST("/api/session/:id/items", s.handleAddItems)
	s.echo.POST("/api/session/:id/join", s.handleJoin)
	s.echo.POST("/api/session/:id/assign", s.handleAssign)
	s.echo.PATCH("/api/session/:id/items/:itemID", s.handleUpdateItem)
	s.echo.POST("/api/session/:id/items/:itemID/apply-fix", s.handleApplyFix)
	s.echo.POST("/api/session/:id/items/:itemID/dismiss-issue", s.handleDismissIssue)

	// Receipt extraction and verification
	s.echo.POST("/api/upload", s.handleUpload)
	s.echo.POST("/api/verify/:id", s.handleVerify)

	// Snapshot streams
	s.echo.GET("/api/sync/:id", s.handleSSE)
	s.echo.GET("/ws/session/:id", s.handleWebSocket)
}
