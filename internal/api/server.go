package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trading-support-app/internal/auth"
	"trading-support-app/internal/chat"
	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
	"trading-support-app/internal/logging"
	"trading-support-app/internal/notify"
	"trading-support-app/internal/session"
	"trading-support-app/internal/state"
	"trading-support-app/internal/wallet"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
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

// Server represents the HTTP API server
type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	repo           *database.Repository
	eventBus       *events.EventBus
	config         ServerConfig
	authService    *auth.Service
	store          *state.Store
	walletService  *wallet.Service
	chatService    *chat.Service
	sessionManager *session.Manager
	alerts         *notify.Manager
	wsHub          *WSHub
	rateLimiter    *RateLimiter // Protects the credential endpoints from brute force
	logger         zerolog.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ProductionMode  bool
	StaticFilesPath string
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	eventBus *events.EventBus,
	authService *auth.Service,
	store *state.Store,
	walletService *wallet.Service,
	chatService *chat.Service,
	sessionManager *session.Manager,
	alerts *notify.Manager,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(traceMiddleware())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8088", "http://localhost:8090"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:         router,
		repo:           repo,
		eventBus:       eventBus,
		config:         config,
		authService:    authService,
		store:          store,
		walletService:  walletService,
		chatService:    chatService,
		sessionManager: sessionManager,
		alerts:         alerts,
		rateLimiter:    NewRateLimiter(30, time.Minute),
		logger:         logger.With().Str("component", "APIServer").Logger(),
	}

	server.wsHub = NewWSHub(eventBus, logger)

	server.setupRoutes()

	return server
}

// traceMiddleware tags every request with a trace ID so log lines from
// the same request correlate, and logs server-side failures.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, requestLogger := logging.WithTraceContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", logging.TraceIDFromContext(ctx))

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			requestLogger.Error("Request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", status)
		}
	}
}

// rateLimitMiddleware limits requests per endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint. Please slow down.",
				"path":    path,
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

	// Auth routes (public, rate limited against credential stuffing)
	authHandlers := auth.NewHandlers(s.authService)
	authGroup := s.router.Group("/api/auth")
	authGroup.Use(s.rateLimitMiddleware())
	authHandlers.RegisterRoutes(authGroup, jwtManager)

	// API routes (all require authentication)
	api := s.router.Group("/api")
	api.Use(auth.Middleware(jwtManager))
	{
		// Support chat
		api.GET("/chat/conversation", s.handleGetConversation)
		api.POST("/chat/messages", s.handleSendMessage)
		api.POST("/chat/typing", s.handleSetTyping)
		api.GET("/chat/typing", s.handleGetTyping)

		// Wallet
		api.GET("/wallet/transactions", s.handleGetTransactions)
		api.POST("/wallet/withdrawals", s.handleRequestWithdrawal)

		// Notifications
		api.GET("/notifications", s.handleGetNotifications)
		api.POST("/notifications/:id/read", s.handleMarkNotificationRead)
		api.POST("/notifications/read-all", s.handleMarkAllNotificationsRead)

		// Profile & session
		api.PUT("/profile", s.handleUpdateProfile)
		api.GET("/session/snapshot", s.handleGetSnapshot)
	}

	// Admin endpoints (requires admin role)
	admin := api.Group("/admin")
	admin.Use(auth.RequireAdmin())
	{
		admin.GET("/users", s.handleAdminListUsers)
		admin.GET("/users/:id", s.handleAdminGetUser)
		admin.GET("/users/:id/conversation", s.handleAdminGetConversation)
		admin.POST("/users/:id/messages", s.handleAdminSendMessage)
		admin.POST("/users/:id/balance", s.handleAdminAdjustBalance)
		admin.POST("/users/:id/deposits", s.handleAdminRecordDeposit)
		admin.GET("/users/:id/typing", s.handleAdminGetTyping)
		admin.DELETE("/users/:id", s.handleAdminDeleteUser)
		admin.GET("/transactions", s.handleAdminListTransactions)
		admin.POST("/withdrawals/:id/resolve", s.handleAdminResolveWithdrawal)
		admin.POST("/notifications/broadcast", s.handleAdminBroadcastNotification)
	}

	// WebSocket endpoint; the token attaches the connection to a user so
	// logout can tear it down.
	s.router.GET("/ws", auth.OptionalMiddleware(jwtManager), s.handleWebSocket)

	// Serve static files (React build) in production
	if s.config.StaticFilesPath != "" {
		s.router.Static("/assets", s.config.StaticFilesPath+"/assets")
		s.router.StaticFile("/", s.config.StaticFilesPath+"/index.html")

		s.router.NoRoute(func(c *gin.Context) {
			if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/api" {
				c.JSON(http.StatusNotFound, gin.H{
					"error":   "API endpoint not found",
					"path":    c.Request.URL.Path,
					"method":  c.Request.Method,
					"message": "This API endpoint does not exist. Check your request path and HTTP method.",
				})
				return
			}

			// For non-API paths, serve index.html to support client-side routing
			c.File(s.config.StaticFilesPath + "/index.html")
		})
	}
}

// Start starts the HTTP server and the websocket hub
func (s *Server) Start() error {
	go s.wsHub.Run()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		logging.FromContext(c.Request.Context()).WithError(err).Warn("Database health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"database":   "healthy",
		"websockets": s.wsHub.GetClientCount(),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// getUserID returns the user ID from the context, or empty string if not
// authenticated.
func (s *Server) getUserID(c *gin.Context) string {
	return auth.GetUserID(c)
}

// getUserIDRequired returns the user ID from the context and sends error if not authenticated
func (s *Server) getUserIDRequired(c *gin.Context) (string, bool) {
	userID := s.getUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "UNAUTHORIZED",
			"message": "authentication required",
		})
		return "", false
	}
	return userID, true
}
