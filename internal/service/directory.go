package service

import (
	"context"
	"errors"

	"zapline/backend/internal/repository"
	"zapline/backend/pkg/cache"

	"gorm.io/gorm"
)

// Directory resolves display names for user IDs. Names are immutable
// after registration so cached entries never go stale within their TTL.
type Directory struct {
	users repository.UserRepository
	names *cache.Cache
}

func NewDirectory(users repository.UserRepository, names *cache.Cache) *Directory {
	return &Directory{users: users, names: names}
}

// DisplayName returns the name registered for the user ID, or
// ErrUserNotFound when no such account exists.
func (d *Directory) DisplayName(ctx context.Context, userID string) (string, error) {
	if d.names != nil {
		if cached, ok := d.names.Get(userID); ok {
			if name, ok := cached.(string); ok {
				return name, nil
			}
		}
	}

	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}

	if d.names != nil {
		d.names.Set(userID, user.Name)
	}
	return user.Name, nil
}

// Exists reports whether a user ID refers to a registered account.
func (d *Directory) Exists(ctx context.Context, userID string) (bool, error) {
	_, err := d.DisplayName(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
