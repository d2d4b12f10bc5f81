package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"emailbot-backend/internal/audit"
	"emailbot-backend/internal/auth"
	"emailbot-backend/internal/cache"
	"emailbot-backend/internal/database"
	"emailbot-backend/internal/license"
	"emailbot-backend/internal/monitor"
	"emailbot-backend/internal/screenshots"
	"emailbot-backend/internal/stats"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RateLimiter provides simple in-memory rate limiting per key
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins string
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig

	repo              *database.Repository
	authService       *auth.Service
	licenseService    *license.Service
	statsService      *stats.Service
	monitorService    *monitor.Service
	screenshotService *screenshots.Service
	auditRecorder     *audit.Recorder
	cacheService      *cache.CacheService
	hub               *monitor.Hub

	// Unauthenticated license endpoints are throttled per client IP
	rateLimiter *RateLimiter
}

// Deps bundles the services the server exposes
type Deps struct {
	Repo              *database.Repository
	AuthService       *auth.Service
	LicenseService    *license.Service
	StatsService      *stats.Service
	MonitorService    *monitor.Service
	ScreenshotService *screenshots.Service
	AuditRecorder     *audit.Recorder
	CacheService      *cache.CacheService
	Hub               *monitor.Hub
}

// NewServer creates a new API server
func NewServer(config ServerConfig, deps Deps) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:            router,
		config:            config,
		repo:              deps.Repo,
		authService:       deps.AuthService,
		licenseService:    deps.LicenseService,
		statsService:      deps.StatsService,
		monitorService:    deps.MonitorService,
		screenshotService: deps.ScreenshotService,
		auditRecorder:     deps.AuditRecorder,
		cacheService:      deps.CacheService,
		hub:               deps.Hub,
		rateLimiter:       NewRateLimiter(60, time.Minute),
	}

	server.setupRoutes()

	return server
}

// rateLimitMiddleware throttles unauthenticated endpoints per client IP
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.FullPath()
		if !s.rateLimiter.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   auth.ErrRateLimited.Code,
				"message": auth.ErrRateLimited.Message,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	jwtManager := s.authService.GetJWTManager()

	// Auth routes, throttled like the other unauthenticated surface
	authGroup := s.router.Group("/api/auth")
	authGroup.Use(s.rateLimitMiddleware())
	authHandlers := auth.NewHandlers(s.authService, s.auditRecorder)
	authHandlers.RegisterRoutes(authGroup, jwtManager, s.repo)

	// License client endpoints: bots call these with a key, not a JWT
	client := s.router.Group("/api/license")
	client.Use(s.rateLimitMiddleware())
	{
		client.POST("/activate", s.handleActivateLicense)
		client.POST("/validate", s.handleValidateLicense)
	}

	// Authenticated API
	api := s.router.Group("/api")
	api.Use(auth.Middleware(jwtManager, s.repo))
	{
		// Activity stats
		api.POST("/stats/log-activity", s.handleLogActivity)
		api.POST("/stats/session/start", s.handleStartSession)
		api.POST("/stats/session/end", s.handleEndSession)
		api.GET("/stats/summary", s.handleGetSummary)
		api.GET("/stats/daily", s.handleListDailyStats)
		api.GET("/stats/weekly", s.handleListWeeklyStats)
		api.GET("/stats/monthly", s.handleListMonthlyStats)
		api.GET("/stats/export", s.handleExportStats)

		// Per-email event log
		api.POST("/events", s.handleCreateEvent)
		api.GET("/events", s.handleListEvents)

		// Fleet liveness
		api.POST("/heartbeat", s.handleHeartbeat)

		// Screenshots
		api.POST("/screenshots", s.handleUploadScreenshot)
		api.GET("/screenshots", s.handleListScreenshots)
		api.GET("/screenshots/:id/download", s.handleDownloadScreenshot)
		api.DELETE("/screenshots/:id", s.handleDeleteScreenshot)
	}

	// Admin API
	admin := s.router.Group("/api/admin")
	admin.Use(auth.Middleware(jwtManager, s.repo), auth.RequireAdmin())
	{
		// License management
		admin.POST("/licenses", s.handleCreateLicense)
		admin.GET("/licenses", s.handleListLicenses)
		admin.GET("/licenses/:id", s.handleGetLicense)
		admin.PATCH("/licenses/:id", s.handleUpdateLicense)
		admin.DELETE("/licenses/:id", s.handleRevokeLicense)
		admin.GET("/licenses/:id/activations", s.handleListActivations)
		admin.POST("/activations/:id/revoke", s.handleRevokeActivation)

		// User management
		admin.GET("/users", s.handleListUsers)
		admin.PATCH("/users/:id", s.handleUpdateUser)
		admin.DELETE("/users/:id", s.handleDeactivateUser)
		admin.PUT("/users/:id/daily-stats", s.handleUpdateDailyStats)

		// Fleet control
		admin.GET("/fleet", s.handleGetFleet)
		admin.GET("/monitor/ws", s.handleWebSocket)
		admin.POST("/machines/:id/pause", s.handlePauseMachine)
		admin.POST("/machines/:id/resume", s.handleResumeMachine)

		// Housekeeping
		admin.POST("/screenshots/cleanup", s.handleCleanupScreenshots)

		// Audit trail and notifications
		admin.GET("/audit", s.handleListAudit)
		admin.GET("/notifications", s.handleListNotifications)
		admin.POST("/notifications/:id/read", s.handleMarkNotificationRead)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting HTTP server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Router exposes the underlying engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.repo.DB().HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	resp := gin.H{
		"status":   "healthy",
		"database": "healthy",
	}
	if s.cacheService != nil {
		resp["cache"] = s.cacheService.GetStats()
	}

	c.JSON(http.StatusOK, resp)
}

// handleWebSocket attaches the caller to the live fleet feed
func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.ServeWS(c, auth.GetUserID(c))
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, gin.H{
		"error":   code,
		"message": message,
	})
}

func (s *Server) record(c *gin.Context, action, entityType, entityID string, details map[string]interface{}) {
	if s.auditRecorder != nil {
		s.auditRecorder.Record(auth.GetUserID(c), action, entityType, entityID, details, c.ClientIP())
	}
}

// notifyAdmins raises an in-app notification. Best-effort: a write failure
// never affects the request that triggered it.
func (s *Server) notifyAdmins(c *gin.Context, kind, message, entityType, entityID string) {
	n := &database.Notification{
		Kind:    kind,
		Message: message,
	}
	if entityType != "" {
		n.EntityType = &entityType
	}
	if entityID != "" {
		n.EntityID = &entityID
	}
	_ = s.repo.CreateNotification(c.Request.Context(), n)
}
