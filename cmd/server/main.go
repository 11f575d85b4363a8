package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zapline/backend/internal/models"
	"zapline/backend/pkg/config"
	"zapline/backend/pkg/di"
	"zapline/backend/pkg/logger"
	"zapline/backend/pkg/router"
	"zapline/backend/pkg/secrets"
	"zapline/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	// Secrets override plain environment values when a vault is configured
	if err := secrets.Init(log); err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cfg.JWT.Secret = secrets.GetSecretWithDefault(ctx, "JWT_SECRET", cfg.JWT.Secret)
		cfg.Database.Password = secrets.GetSecretWithDefault(ctx, "DB_PASSWORD", cfg.Database.Password)
		cancel()
	}

	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Indexes the inbox and history queries lean on
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC)").Error; err != nil {
		log.LogError(err, "Failed to create message index", "index", "idx_messages_conversation_created")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_conversations_user_b ON conversations(user_b)").Error; err != nil {
		log.LogError(err, "Failed to create conversation index", "index", "idx_conversations_user_b")
	}

	container, err := di.New(db, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	shutdownTracing := observability.SetupTracing("zapline-backend")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics(os.Getenv("METRICS_ADDR"))

	r := router.New(container)
	r.SetupRoutes()

	if schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH"); schemaPath != "" {
		r.AddOpenAPIValidation(schemaPath)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r.Engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // websocket connections write indefinitely
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Closing the hub first lets websocket clients drain before the
	// listener stops accepting
	r.Hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
