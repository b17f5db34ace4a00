package service

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/repository"
	"ctchen222/item-registry/internal/events"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TransferPath is the route that redeems a transfer link.
const TransferPath = "/api/v1/get"

// TransferKeyParam is the query parameter carrying the transfer token.
const TransferKeyParam = "transfer_key"

// ItemService defines item management and the ownership transfer flow.
type ItemService interface {
	ListFor(ctx context.Context, user *models.User) ([]models.Item, error)
	Create(ctx context.Context, user *models.User, title string) (*models.Item, error)
	Delete(ctx context.Context, user *models.User, itemID int64) error
	// Send returns a link the achiever can open to take ownership of the item.
	Send(ctx context.Context, user *models.User, itemID int64, achiever string) (string, error)
	// Receive redeems a transfer token and returns a confirmation message.
	Receive(ctx context.Context, user *models.User, token string) (string, error)
}

type itemService struct {
	items     repository.ItemRepository
	transfers TransferTokenService
	publisher events.Publisher
	baseURL   string
	logger    *slog.Logger
}

// NewItemService creates a new ItemService. Links are rooted at baseURL.
func NewItemService(
	items repository.ItemRepository,
	transfers TransferTokenService,
	publisher events.Publisher,
	baseURL string,
	opts ...Option,
) ItemService {
	o := applyOptions(opts)
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &itemService{
		items:     items,
		transfers: transfers,
		publisher: publisher,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    o.logger,
	}
}

func (s *itemService) ListFor(ctx context.Context, user *models.User) ([]models.Item, error) {
	ctx, span := tracer.Start(ctx, "ItemService.ListFor", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
	))
	defer span.End()

	items, err := s.items.ListItemsByOwner(ctx, user.ID)
	if err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func (s *itemService) Create(ctx context.Context, user *models.User, title string) (*models.Item, error) {
	ctx, span := tracer.Start(ctx, "ItemService.Create", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
	))
	defer span.End()

	item, err := s.items.CreateItem(ctx, user.ID, title)
	if errors.Is(err, repository.ErrConflict) {
		return nil, oops.Code("ITEM_DUPLICATE").With("item.title", title).Wrap(ErrDuplicateTitle)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	s.logger.InfoContext(ctx, "Item created", "user.id", user.ID, "item.id", item.ID)
	return item, nil
}

// Delete removes any existing item. Ownership is not checked.
func (s *itemService) Delete(ctx context.Context, user *models.User, itemID int64) error {
	ctx, span := tracer.Start(ctx, "ItemService.Delete", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.Int64("item.id", itemID),
	))
	defer span.End()

	err := s.items.DeleteItem(ctx, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return oops.Code("ITEM_NOT_FOUND").With("item.id", itemID).Wrap(ErrNotFound)
	}
	if err != nil {
		return storeErr(err)
	}

	s.logger.InfoContext(ctx, "Item deleted", "user.id", user.ID, "item.id", itemID)
	return nil
}

func (s *itemService) Send(ctx context.Context, user *models.User, itemID int64, achiever string) (string, error) {
	ctx, span := tracer.Start(ctx, "ItemService.Send", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.Int64("item.id", itemID),
	))
	defer span.End()

	offer, err := s.transfers.Issue(ctx, user.ID, achiever, itemID)
	if err != nil {
		return "", err
	}

	link := s.transferLink(offer.Token)
	s.publish(ctx, events.TypeTransferOffered, offer.AchieverID, events.TransferOfferedPayload{
		ItemID:    offer.Item.ID,
		ItemTitle: offer.Item.Title,
		From:      user.Username,
		Link:      link,
	})
	return link, nil
}

func (s *itemService) Receive(ctx context.Context, user *models.User, token string) (string, error) {
	ctx, span := tracer.Start(ctx, "ItemService.Receive", trace.WithAttributes(
		attribute.Int64("user.id", user.ID),
	))
	defer span.End()

	item, err := s.transfers.Redeem(ctx, token, user.ID)
	if err != nil {
		return "", err
	}

	s.publish(ctx, events.TypeItemTransferred, item.OwnerID, events.ItemTransferredPayload{
		ItemID:    item.ID,
		ItemTitle: item.Title,
		To:        user.Username,
	})
	return fmt.Sprintf("You've just obtained %s", item.Title), nil
}

func (s *itemService) transferLink(token string) string {
	q := url.Values{}
	q.Set(TransferKeyParam, token)
	return s.baseURL + TransferPath + "?" + q.Encode()
}

// publish notifies userID. Failures are logged and never fail the request.
func (s *itemService) publish(ctx context.Context, eventType string, userID int64, payload any) {
	ev, err := events.New(eventType, userID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ownership event", "event.type", eventType, "user.id", userID, "error", err)
	}
}
