package router

import (
	"time"

	"zapline/backend/internal/api"
	"zapline/backend/internal/ws"
	"zapline/backend/pkg/config"
	"zapline/backend/pkg/di"
	"zapline/backend/pkg/errors"
	"zapline/backend/pkg/health"
	"zapline/backend/pkg/logger"
	"zapline/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
	Relay     *ws.Relay
	Health    *health.Checker
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.SetTrustedProxies(cfg.Security.TrustedProxies)

	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.RequestIDMiddleware())

	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	metrics := ws.NewMetrics(container.Registry)

	// The hub takes the presence tracker as an interface; a typed nil
	// pointer here would defeat its nil checks.
	var presence ws.PresenceTracker
	if container.Presence != nil {
		presence = container.Presence
	}
	hub := ws.NewHub(presence, metrics, container.Logger)
	relay := ws.NewRelay(hub, container.MessageService, container.ConversationService, metrics, container.Logger)

	checker := health.NewChecker(container.Logger, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error {
		return config.TestConnection(container.DB)
	})
	checker.Start()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       hub,
		Relay:     relay,
		Health:    checker,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware(r.Config.Security.AllowedOrigins))

	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWTService, r.Logger)

	authHandler := api.NewAuthHandler(r.Container.UserService, r.Logger)
	conversationHandler := api.NewConversationHandler(
		r.Container.ConversationService,
		r.Container.InboxService,
		r.Container.MessageService,
		r.Container.Directory,
		r.Logger,
	)

	v1 := r.Engine.Group("/api/v1")

	publicRoutes := v1.Group("/")
	{
		publicRoutes.GET("/health", gin.WrapF(r.Health.HTTPHandler()))

		authRoutes := publicRoutes.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.GET("/me", jwtAuth, authHandler.Me)
		}
	}

	protectedRoutes := v1.Group("/")
	protectedRoutes.Use(jwtAuth)
	{
		conversationRoutes := protectedRoutes.Group("/conversations")
		{
			conversationRoutes.POST("", conversationHandler.CreateOrGet)
			conversationRoutes.GET("", conversationHandler.List)
			conversationRoutes.GET("/:id/messages", conversationHandler.History)
		}
	}

	r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		r.Container.Registry, promhttp.HandlerOpts{})))

	wsHandler := ws.NewHandler(
		r.Hub,
		r.Relay,
		r.Container.JWTService,
		r.Config.Security.AllowedOrigins,
		r.Config.Chat.SendBufferSize,
		r.Logger,
	)
	r.Engine.GET("/ws", wsHandler.ServeWS)
}

// corsMiddleware allows the configured origins, including the headers a
// websocket handshake needs
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	wildcard := false
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case wildcard:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
