package repository

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"time"

	"github.com/jmoiron/sqlx"
)

// SessionRepository stores the single active session token of each user.
type SessionRepository interface {
	// SaveSession replaces the user's slot, invalidating any previous token.
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, userID int64) (*models.Session, error)
}

type sqliteSessionRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSessionRepository creates a SQLite-backed SessionRepository over the
// user_tokens table.
func NewSessionRepository(db *sqlx.DB, timeout time.Duration) SessionRepository {
	return &sqliteSessionRepository{db: db, timeout: timeout}
}

type sessionRow struct {
	UserID    int64  `db:"user_id"`
	Token     string `db:"token"`
	ExpiresAt int64  `db:"expires_at"`
}

func (r *sqliteSessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `INSERT INTO user_tokens (user_id, token, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at`
	if _, err := r.db.ExecContext(ctx, query, session.UserID, session.Token, session.ExpiresAt.Unix()); err != nil {
		return classify("SESSION_SAVE", err)
	}
	return nil
}

func (r *sqliteSessionRepository) GetSession(ctx context.Context, userID int64) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row sessionRow
	query := `SELECT user_id, token, expires_at FROM user_tokens WHERE user_id = ?`
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return nil, classify("SESSION_GET", err)
	}
	return &models.Session{
		UserID:    row.UserID,
		Token:     row.Token,
		ExpiresAt: time.Unix(row.ExpiresAt, 0),
	}, nil
}
