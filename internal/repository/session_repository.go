package repository

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	apirepository "ctchen222/item-registry/internal/api/repository"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("repository.redis")

type redisSessionRepository struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewSessionRepository creates a Redis-backed session store. Each user owns
// one key holding the current token; the key expires with the token.
func NewSessionRepository(rdb *redis.Client, timeout time.Duration) apirepository.SessionRepository {
	return &redisSessionRepository{rdb: rdb, timeout: timeout}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

func (r *redisSessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	ctx, span := tracer.Start(ctx, "SessionRepository.SaveSession", trace.WithAttributes(
		attribute.Int64("user.id", session.UserID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, sessionKey(session.UserID),
		"token", session.Token,
		"expires_at", strconv.FormatInt(session.ExpiresAt.Unix(), 10),
	)
	pipe.Expire(ctx, sessionKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to save session")
		return unavailable("SESSION_SAVE", err)
	}
	return nil
}

func (r *redisSessionRepository) GetSession(ctx context.Context, userID int64) (*models.Session, error) {
	ctx, span := tracer.Start(ctx, "SessionRepository.GetSession", trace.WithAttributes(
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.rdb.HGetAll(ctx, sessionKey(userID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load session")
		return nil, unavailable("SESSION_GET", err)
	}
	token, ok := data["token"]
	if !ok {
		return nil, oops.Code("SESSION_GET").With("user.id", userID).Wrap(apirepository.ErrNotFound)
	}
	exp, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return nil, oops.Code("SESSION_GET").With("user.id", userID).Wrapf(err, "corrupt session expiry")
	}
	return &models.Session{UserID: userID, Token: token, ExpiresAt: time.Unix(exp, 0)}, nil
}

func unavailable(code string, err error) error {
	return oops.Code(code).With("cause", err.Error()).Wrap(errors.Join(apirepository.ErrUnavailable, err))
}
