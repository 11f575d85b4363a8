package di

import (
	"zapline/backend/internal/repository"
	"zapline/backend/internal/service"
	"zapline/backend/pkg/cache"
	"zapline/backend/pkg/config"
	"zapline/backend/pkg/jwt"
	"zapline/backend/pkg/logger"
	"zapline/backend/pkg/resilience"
	"zapline/backend/shared/redis"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB                  *gorm.DB
	Logger              *logger.Logger
	Config              *config.Config
	JWTService          *jwt.Service
	UserService         *service.UserService
	Directory           *service.Directory
	ConversationService *service.ConversationService
	MessageService      *service.MessageService
	InboxService        *service.InboxService
	Presence            *redis.Presence
	Registry            *prometheus.Registry
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	userRepo := repository.NewGormUserRepository(db)
	conversationRepo := repository.NewGormConversationRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	var nameCache *cache.Cache
	if cfg.Cache.Enabled {
		nameCache = cache.NewCache()
	}
	directory := service.NewDirectory(userRepo, nameCache)

	breaker := resilience.NewCircuitBreaker(
		resilience.DefaultCircuitBreakerConfig("message-store"), log)

	userService := service.NewUserService(userRepo, jwtService, log)
	conversationService := service.NewConversationService(conversationRepo, directory, log)
	messageService := service.NewMessageService(
		messageRepo, breaker, cfg.Database.Timeout, cfg.Chat.MaxMessageBytes, log)
	inboxService := service.NewInboxService(conversationRepo, messageRepo, directory)

	// Presence is optional; without redis the registry alone still knows
	// who is connected to this process.
	var presence *redis.Presence
	if cfg.Redis.Enabled {
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		presence = redis.NewPresence(client, cfg.Redis.PresenceTTL)
	}

	return &Container{
		DB:                  db,
		Logger:              log,
		Config:              cfg,
		JWTService:          jwtService,
		UserService:         userService,
		Directory:           directory,
		ConversationService: conversationService,
		MessageService:      messageService,
		InboxService:        inboxService,
		Presence:            presence,
		Registry:            prometheus.NewRegistry(),
	}, nil
}
