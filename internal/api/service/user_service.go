package service

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/repository"
	"ctchen222/item-registry/internal/validator"
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/metric"
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks . AuthGuard,ItemService,UserService

// UserService defines the interface for user-related business logic.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (string, error)
	ListUsernames(ctx context.Context) ([]string, error)
}

type userService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	policy   validator.PasswordPolicy
	guard    AuthGuard
	sessions SessionTokenService
	logger   *slog.Logger
	logins   metric.Int64Counter
}

// NewUserService creates a new UserService.
func NewUserService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	policy validator.PasswordPolicy,
	guard AuthGuard,
	sessions SessionTokenService,
	opts ...Option,
) UserService {
	o := applyOptions(opts)
	return &userService{
		userRepo: userRepo,
		hasher:   hasher,
		policy:   policy,
		guard:    guard,
		sessions: sessions,
		logger:   o.logger,
		logins:   counter("itemreg.logins", "Login attempts"),
	}
}

// Register creates a user after checking that the username is free and the
// password satisfies the policy.
func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	ctx, span := tracer.Start(ctx, "UserService.Register")
	defer span.End()

	if err := validator.GetValidator().StructCtx(ctx, req); err != nil {
		return nil, oops.Code("REGISTER_INVALID").Wrap(ErrMissingCredentials)
	}

	errb := oops.Code("REGISTER_REJECTED").With("username", req.Username)

	_, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return nil, errb.Wrap(ErrDuplicateUsername)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeErr(err)
	}

	if err := s.policy.Check(req.Password); err != nil {
		return nil, errb.With("reason", err.Error()).Wrap(errors.Join(ErrPolicyViolation, err))
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, errb.Wrap(err)
	}

	user, err := s.userRepo.CreateUser(ctx, req.Username, hash)
	if errors.Is(err, repository.ErrConflict) {
		return nil, errb.Wrap(ErrDuplicateUsername)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.InfoContext(ctx, "User registered", "user.id", user.ID)
	return user, nil
}

// Login authenticates the credentials and issues a fresh session token,
// replacing any token the user held before.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "UserService.Login")
	defer span.End()

	user, err := s.guard.AuthenticateCredentials(ctx, req.Username, req.Password)
	if err != nil {
		addOutcome(ctx, s.logins, "rejected")
		return "", err
	}

	token, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		addOutcome(ctx, s.logins, "error")
		return "", err
	}

	addOutcome(ctx, s.logins, "ok")
	s.logger.InfoContext(ctx, "User logged in", "user.id", user.ID)
	return token, nil
}

func (s *userService) ListUsernames(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "UserService.ListUsernames")
	defer span.End()

	names, err := s.userRepo.ListUsernames(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return names, nil
}
