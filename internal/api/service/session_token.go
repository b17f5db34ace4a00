package service

import (
	"context"
	"crypto/subtle"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/repository"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// SessionTokenService issues and validates session tokens. Each user has a
// single active token; issuing a new one invalidates the previous one.
type SessionTokenService interface {
	Issue(ctx context.Context, userID int64) (string, error)
	Validate(ctx context.Context, token string) (int64, error)
}

type sessionClaims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

type sessionTokenService struct {
	key      []byte
	ttl      time.Duration
	sessions repository.SessionRepository
	now      func() time.Time
}

// NewSessionTokenService signs tokens with key (HS256) valid for ttl.
func NewSessionTokenService(key []byte, ttl time.Duration, sessions repository.SessionRepository, opts ...Option) SessionTokenService {
	o := applyOptions(opts)
	return &sessionTokenService{key: key, ttl: ttl, sessions: sessions, now: o.now}
}

func (s *sessionTokenService) Issue(ctx context.Context, userID int64) (string, error) {
	ctx, span := tracer.Start(ctx, "SessionTokenService.Issue")
	defer span.End()

	now := s.now()
	exp := now.Add(s.ttl)
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", oops.Code("SESSION_SIGN").With("user.id", userID).Wrapf(err, "failed to sign session token")
	}

	if err := s.sessions.SaveSession(ctx, &models.Session{UserID: userID, Token: token, ExpiresAt: exp}); err != nil {
		return "", storeErr(err)
	}
	return token, nil
}

func (s *sessionTokenService) Validate(ctx context.Context, token string) (int64, error) {
	ctx, span := tracer.Start(ctx, "SessionTokenService.Validate")
	defer span.End()

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, keyFunc(s.key),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, oops.Code("SESSION_INVALID").Wrap(classifyJWT(err))
	}
	if claims.UserID == 0 {
		return 0, oops.Code("SESSION_INVALID").With("reason", "missing id claim").Wrap(ErrMalformedToken)
	}

	stored, err := s.sessions.GetSession(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, oops.Code("SESSION_INVALID").With("user.id", claims.UserID).Wrap(ErrSessionNotFound)
	}
	if err != nil {
		return 0, storeErr(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(token)) != 1 {
		return 0, oops.Code("SESSION_INVALID").With("user.id", claims.UserID).Wrap(ErrSuperseded)
	}
	return claims.UserID, nil
}

func keyFunc(key []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) { return key, nil }
}

func classifyJWT(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return errors.Join(ErrMalformedToken, err)
	}
}
