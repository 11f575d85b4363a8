package service

import (
	"context"
	"errors"

	"zapline/backend/internal/models"
	"zapline/backend/internal/repository"
	"zapline/backend/pkg/jwt"
	"zapline/backend/pkg/logger"

	"gorm.io/gorm"
)

// UserService handles account registration and credential checks.
type UserService struct {
	users repository.UserRepository
	jwt   *jwt.Service
	log   *logger.Logger
}

func NewUserService(users repository.UserRepository, jwtService *jwt.Service, log *logger.Logger) *UserService {
	return &UserService{users: users, jwt: jwtService, log: log}
}

// Register creates a new account and returns it together with a signed
// token. Phone numbers are unique; a duplicate returns ErrPhoneTaken.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, string, error) {
	existing, err := s.users.GetByPhone(ctx, req.Phone)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", err
	}
	if existing != nil {
		return nil, "", ErrPhoneTaken
	}

	user := &models.User{
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Concurrent registration of the same phone loses the race at
		// the unique index rather than at the lookup above.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrPhoneTaken
		}
		return nil, "", err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Name)
	if err != nil {
		return nil, "", err
	}

	s.log.Info("user registered", "user_id", user.ID)
	return user, token, nil
}

// Login verifies the password for a user ID and issues a token.
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error) {
	user, err := s.users.GetByID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Name)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
