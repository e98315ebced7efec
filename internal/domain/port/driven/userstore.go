package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

// Sentinel errors returned by UserStore implementations.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username already exists.
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserStore defines the driven port for portal accounts.
type UserStore interface {
	// Create inserts a user and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, user model.User) (model.User, error)
	// GetByUsername returns ErrUserNotFound if no such user exists.
	GetByUsername(ctx context.Context, username string) (model.User, error)
	Count(ctx context.Context) (int, error)
}
