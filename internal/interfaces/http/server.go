// Package http exposes the workflow engine over a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Mode            string
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Mode:            gin.ReleaseMode,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	router := gin.New()
	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(deps, logger),
		logger:   logger,
	}

	router.Use(gin.Recovery())
	router.Use(server.loggingMiddleware())
	server.setupRoutes()

	return server
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	{
		api.POST("/workflows", h.InitiateWorkflow)
		api.GET("/workflows", h.ListWorkflows)
		api.GET("/workflows/:id", h.GetWorkflow)
		api.POST("/workflows/:id/actions", h.ProcessApproval)
		api.POST("/workflows/:id/escalate", h.Escalate)
		api.POST("/workflows/:id/reassign", h.Reassign)
		api.PUT("/workflows/:id/priority", h.UpdatePriority)
		api.GET("/workflows/:id/notifications", h.ListNotifications)

		api.GET("/requests/:requestId/workflow", h.GetWorkflowByRequest)
		api.GET("/requests/:requestId/history", h.History)

		api.GET("/approvals/pending", h.PendingApprovals)
		api.GET("/approvers/:id/stats", h.ApproverStats)
		api.GET("/metrics", h.Metrics)
		api.GET("/reports/workflows.xlsx", h.WorkflowReport)
		api.POST("/admin/catalog/reload", h.ReloadCatalog)

		bookings := api.Group("/workflows/:id/bookings")
		{
			bookings.POST("/uploaded", h.MarkBookingUploaded)
			bookings.POST("/complete", h.MarkBookingCompleted)
			bookings.PUT("", h.UpdateBookingDetails)
			bookings.POST("/actions", h.RecordBookingAction)
			bookings.POST("/items", h.AddBooking)
			bookings.GET("/items", h.ListBookings)
			bookings.PUT("/items/:bookingId", h.UpdateBooking)
			bookings.PATCH("/items/:bookingId/status", h.UpdateBookingStatus)
			bookings.DELETE("/items/:bookingId", h.DeleteBooking)
			bookings.GET("/summary", h.BookingSummary)
			bookings.GET("/stats", h.BookingStats)
		}
		api.POST("/workflows/:id/bills", h.UploadBills)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
