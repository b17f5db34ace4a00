package service

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/repository"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// AuthGuard resolves the caller of a request.
type AuthGuard interface {
	AuthenticateCredentials(ctx context.Context, username, password string) (*models.User, error)
	// AuthenticateToken returns ErrUnauthorized for every token problem.
	// Store failures are reported as ErrStoreUnavailable.
	AuthenticateToken(ctx context.Context, token string) (*models.User, error)
}

// authGuard verifies unknown usernames against dummyHash so that unknown and
// known users take the same time to reject.
type authGuard struct {
	users     repository.UserRepository
	hasher    PasswordHasher
	sessions  SessionTokenService
	logger    *slog.Logger
	dummyHash string
}

// NewAuthGuard creates a new AuthGuard.
func NewAuthGuard(users repository.UserRepository, hasher PasswordHasher, sessions SessionTokenService, opts ...Option) AuthGuard {
	o := applyOptions(opts)
	g := &authGuard{users: users, hasher: hasher, sessions: sessions, logger: o.logger}
	if h, err := hasher.Hash("timing-equaliser"); err == nil {
		g.dummyHash = h
	} else {
		o.logger.Warn("Failed to prepare dummy password hash", "error", err)
	}
	return g
}

func (g *authGuard) AuthenticateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "AuthGuard.AuthenticateCredentials")
	defer span.End()

	if username == "" || password == "" {
		return nil, oops.Code("AUTH_MISSING_CREDENTIALS").Wrap(ErrMissingCredentials)
	}

	user, err := g.users.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		_, _ = g.hasher.Verify(password, g.dummyHash)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").With("username", username).Wrap(ErrUnknownUser)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	ok, err := g.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_VERIFY").With("user.id", user.ID).Wrap(err)
	}
	if !ok {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").With("user.id", user.ID).Wrap(ErrWrongPassword)
	}
	return user, nil
}

func (g *authGuard) AuthenticateToken(ctx context.Context, token string) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "AuthGuard.AuthenticateToken")
	defer span.End()

	if token == "" {
		return nil, oops.Code("AUTH_UNAUTHORIZED").With("reason", "missing token").Wrap(ErrUnauthorized)
	}

	userID, err := g.sessions.Validate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, err
		}
		g.logger.InfoContext(ctx, "Session token rejected", "reason", err.Error())
		return nil, oops.Code("AUTH_UNAUTHORIZED").With("reason", err.Error()).Wrap(ErrUnauthorized)
	}

	user, err := g.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		g.logger.InfoContext(ctx, "Session token names a missing user", "user.id", userID)
		return nil, oops.Code("AUTH_UNAUTHORIZED").With("user.id", userID).Wrap(ErrUnauthorized)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return user, nil
}
