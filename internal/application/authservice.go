package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
// The two cases are indistinguishable to callers.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService verifies portal users. Session handling is left to the caller;
// each request is authenticated on its own.
type AuthService struct {
	users  driven.UserStore
	logger *slog.Logger
	cost   int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates an AuthService backed by the given UserStore.
func NewAuthService(users driven.UserStore, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		logger: logger,
		cost:   bcrypt.DefaultCost,
	}
}

// Authenticate checks a username and password and returns the caller's principal.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (model.Principal, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, driven.ErrUserNotFound) {
		// Burn a comparison so unknown users take as long as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return model.Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return model.Principal{}, fmt.Errorf("authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.Principal{}, ErrInvalidCredentials
	}

	return model.Principal{Username: user.Username, Role: user.Role}, nil
}

// CreateUser hashes password and stores a new user with the given role.
func (s *AuthService) CreateUser(ctx context.Context, username, password string, role model.Role) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.User{}, errors.New("username is required")
	}
	if password == "" {
		return model.User{}, errors.New("password is required")
	}
	if !role.Valid() {
		return model.User{}, fmt.Errorf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.Create(ctx, model.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	})
}

// EnsureAdmin creates an admin account when the user table is empty. It
// reports whether an account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	if _, err := s.CreateUser(ctx, username, password, model.RoleAdmin); err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", "username", username)
	return true, nil
}

func (s *AuthService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("infrapanel-dummy"), s.cost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
