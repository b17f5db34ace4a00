package repository

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks . ItemRepository,SessionRepository,UserRepository

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsernames(ctx context.Context) ([]string, error)
}

type sqliteUserRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewUserRepository creates a new SQLite-based UserRepository. Every call is
// bounded by timeout.
func NewUserRepository(db *sqlx.DB, timeout time.Duration) UserRepository {
	return &sqliteUserRepository{db: db, timeout: timeout}
}

// CreateUser inserts a user. The UNIQUE constraint on username makes a lost
// race surface as ErrConflict.
func (r *sqliteUserRepository) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `INSERT INTO users (username, password_hash) VALUES (?, ?)`
	res, err := r.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		return nil, classify("USER_CREATE", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, classify("USER_CREATE", err)
	}
	return &models.User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// GetUserByUsername retrieves a user by username, or ErrNotFound.
func (r *sqliteUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var user models.User
	query := `SELECT id, username, password_hash FROM users WHERE username = ?`
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, classify("USER_GET_BY_USERNAME", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by id, or ErrNotFound.
func (r *sqliteUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var user models.User
	query := `SELECT id, username, password_hash FROM users WHERE id = ?`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, classify("USER_GET_BY_ID", err)
	}
	return &user, nil
}

func (r *sqliteUserRepository) ListUsernames(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	usernames := []string{}
	if err := r.db.SelectContext(ctx, &usernames, `SELECT username FROM users ORDER BY id`); err != nil {
		return nil, classify("USER_LIST", err)
	}
	return usernames, nil
}
