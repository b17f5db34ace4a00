package service

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/repository"
	"errors"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TransferTokenService mints and redeems stateless transfer tokens. A token
// names the owner, the achiever and the item; it stays redeemable until the
// item leaves the owner, so redeeming it once spends it.
type TransferTokenService interface {
	Issue(ctx context.Context, ownerID int64, achiever string, itemID int64) (*models.TransferOffer, error)
	// Redeem moves the item to requesterID and returns it with OwnerID set to
	// the previous owner.
	Redeem(ctx context.Context, token string, requesterID int64) (*models.Item, error)
}

type transferClaims struct {
	OwnerID    int64  `json:"owner_id"`
	AchieverID *int64 `json:"achiever_id,omitempty"`
	ItemID     int64  `json:"item_id"`
	jwt.RegisteredClaims
}

type transferTokenService struct {
	key      []byte
	users    repository.UserRepository
	items    repository.ItemRepository
	logger   *slog.Logger
	issued   metric.Int64Counter
	redeemed metric.Int64Counter
	opts     options
}

// NewTransferTokenService signs transfer tokens with the session key.
func NewTransferTokenService(key []byte, users repository.UserRepository, items repository.ItemRepository, opts ...Option) TransferTokenService {
	o := applyOptions(opts)
	return &transferTokenService{
		key:      key,
		users:    users,
		items:    items,
		logger:   o.logger,
		opts:     o,
		issued:   counter("itemreg.transfers.issued", "Transfer tokens minted"),
		redeemed: counter("itemreg.transfers.redeemed", "Transfer token redemption attempts"),
	}
}

func (s *transferTokenService) Issue(ctx context.Context, ownerID int64, achiever string, itemID int64) (*models.TransferOffer, error) {
	ctx, span := tracer.Start(ctx, "TransferTokenService.Issue", trace.WithAttributes(
		attribute.Int64("user.id", ownerID),
		attribute.Int64("item.id", itemID),
	))
	defer span.End()

	errb := oops.Code("TRANSFER_ISSUE").With("owner.id", ownerID).With("item.id", itemID).With("achiever", achiever)

	target, err := s.users.GetUserByUsername(ctx, achiever)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errb.Wrap(ErrUnknownAchiever)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if target.ID == ownerID {
		return nil, errb.Wrap(ErrSameOwner)
	}

	item, err := s.items.GetItem(ctx, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errb.Wrap(ErrUnknownItem)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	achieverID := target.ID
	claims := transferClaims{
		OwnerID:    ownerID,
		AchieverID: &achieverID,
		ItemID:     itemID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(s.opts.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, errb.Wrapf(err, "failed to sign transfer token")
	}

	addOutcome(ctx, s.issued, "ok")
	return &models.TransferOffer{
		Token:      token,
		OwnerID:    ownerID,
		AchieverID: achieverID,
		Item:       *item,
	}, nil
}

func (s *transferTokenService) Redeem(ctx context.Context, token string, requesterID int64) (*models.Item, error) {
	ctx, span := tracer.Start(ctx, "TransferTokenService.Redeem", trace.WithAttributes(
		attribute.Int64("user.id", requesterID),
	))
	defer span.End()

	item, err := s.redeem(ctx, token, requesterID)
	if err != nil {
		addOutcome(ctx, s.redeemed, outcomeOf(err))
		return nil, err
	}
	addOutcome(ctx, s.redeemed, "ok")
	return item, nil
}

func (s *transferTokenService) redeem(ctx context.Context, token string, requesterID int64) (*models.Item, error) {
	errb := oops.Code("TRANSFER_REDEEM").With("user.id", requesterID)

	var claims transferClaims
	_, err := jwt.ParseWithClaims(token, &claims, keyFunc(s.key),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.opts.now),
	)
	if err != nil {
		s.logger.InfoContext(ctx, "Transfer token rejected", "user.id", requesterID, "reason", err.Error())
		return nil, errb.With("reason", err.Error()).Wrap(ErrBadSignature)
	}
	if claims.AchieverID == nil || claims.ItemID == 0 || claims.OwnerID == 0 {
		return nil, errb.Wrap(ErrMalformedPayload)
	}
	errb = errb.With("item.id", claims.ItemID).With("owner.id", claims.OwnerID)
	if *claims.AchieverID != requesterID {
		return nil, errb.Wrap(ErrNotYourLink)
	}

	item, err := s.items.GetItem(ctx, claims.ItemID)
	if err != nil {
		return nil, s.lookupErr(errb, err)
	}
	if err := checkOwnership(errb, item, claims.OwnerID, requesterID); err != nil {
		return nil, err
	}

	moved, err := s.items.TransferItem(ctx, item.ID, claims.OwnerID, requesterID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !moved {
		// Lost a race with another redemption or a delete; report what won.
		current, err := s.items.GetItem(ctx, claims.ItemID)
		if err != nil {
			return nil, s.lookupErr(errb, err)
		}
		if err := checkOwnership(errb, current, claims.OwnerID, requesterID); err != nil {
			return nil, err
		}
		return nil, errb.Wrap(ErrOwnerChanged)
	}

	s.logger.InfoContext(ctx, "Item transferred", "item.id", item.ID, "from", claims.OwnerID, "to", requesterID)
	return item, nil
}

func (s *transferTokenService) lookupErr(errb oops.OopsErrorBuilder, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errb.Wrap(ErrNotFound)
	}
	return storeErr(err)
}

func checkOwnership(errb oops.OopsErrorBuilder, item *models.Item, ownerID, requesterID int64) error {
	errb = errb.With("item.title", item.Title)
	switch item.OwnerID {
	case requesterID:
		return errb.Wrap(ErrAlreadyYours)
	case ownerID:
		return nil
	default:
		return errb.Wrap(ErrOwnerChanged)
	}
}

func outcomeOf(err error) string {
	for _, k := range []struct {
		target error
		name   string
	}{
		{ErrBadSignature, "bad_signature"},
		{ErrMalformedPayload, "malformed"},
		{ErrNotYourLink, "not_your_link"},
		{ErrAlreadyYours, "already_yours"},
		{ErrOwnerChanged, "owner_changed"},
		{ErrNotFound, "not_found"},
	} {
		if errors.Is(err, k.target) {
			return k.name
		}
	}
	return "error"
}
