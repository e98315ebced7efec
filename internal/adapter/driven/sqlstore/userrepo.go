package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// Compile-time interface satisfaction check.
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQL implementation of the UserStore port interface.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user. Returns ErrUserAlreadyExists if the username is taken.
func (r *UserRepo) Create(ctx context.Context, user model.User) (model.User, error) {
	const query = `INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query, user.Username, user.PasswordHash, string(user.Role), createdAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("create user %q: %w", user.Username, driven.ErrUserAlreadyExists)
		}
		return model.User{}, fmt.Errorf("create user %q: %w", user.Username, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("get user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = createdAt.UTC()
	return user, nil
}

// GetByUsername returns the user with the given username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	const query = `SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`

	var user model.User
	var role, createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &role, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("get user %q: %w", username, driven.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %q: %w", username, err)
	}

	user.Role = model.Role(role)
	user.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.User{}, fmt.Errorf("parse created_at for user %q: %w", username, err)
	}

	return user, nil
}

// Count returns the number of users.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
