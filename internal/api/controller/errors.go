package controller

import (
	"ctchen222/item-registry/internal/api/response"
	"ctchen222/item-registry/internal/api/service"
	"ctchen222/item-registry/internal/logger"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
)

type errorMapping struct {
	target  error
	status  int
	message func(err error) string
}

func fixed(msg string) func(error) string {
	return func(error) string { return msg }
}

// mappings is checked in order; the first sentinel matched decides the reply.
var mappings = []errorMapping{
	{service.ErrStoreUnavailable, http.StatusServiceUnavailable, fixed("Service temporarily unavailable")},

	{service.ErrMissingCredentials, http.StatusBadRequest, fixed("Both username and password required")},
	{service.ErrDuplicateUsername, http.StatusBadRequest, func(err error) string {
		return fmt.Sprintf("Username '%v' has been already registered by another user", contextValue(err, "username"))
	}},
	{service.ErrPolicyViolation, http.StatusBadRequest, func(err error) string {
		if reason, ok := contextValue(err, "reason").(string); ok {
			return reason
		}
		return "Weak password"
	}},

	{service.ErrDuplicateTitle, http.StatusBadRequest, func(err error) string {
		return fmt.Sprintf("Item '%v' already exists", contextValue(err, "item.title"))
	}},
	{service.ErrUnknownAchiever, http.StatusBadRequest, fixed("No such user")},
	{service.ErrSameOwner, http.StatusBadRequest, fixed("You can't send an item to yourself")},
	{service.ErrUnknownItem, http.StatusBadRequest, fixed("No such item")},

	{service.ErrBadSignature, http.StatusUnauthorized, fixed("Could not validate credentials")},
	{service.ErrMalformedPayload, http.StatusBadRequest, fixed(service.ErrMalformedPayload.Error())},
	{service.ErrNotYourLink, http.StatusForbidden, fixed(service.ErrNotYourLink.Error())},
	{service.ErrAlreadyYours, http.StatusBadRequest, func(err error) string {
		return fmt.Sprintf("Item %v is already yours", contextValue(err, "item.title"))
	}},
	{service.ErrOwnerChanged, http.StatusBadRequest, fixed("This item has already changed hands")},
	{service.ErrNotFound, http.StatusNotFound, fixed("Item not found")},
}

func contextValue(err error, key string) any {
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Context()[key]
	}
	return nil
}

// writeError maps a service error to its HTTP reply. Unknown errors are
// logged and answered with 500.
func writeError(c *gin.Context, l *slog.Logger, err error) {
	for _, m := range mappings {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.status == http.StatusServiceUnavailable {
			logger.LogError(c.Request.Context(), l, "Store unavailable", err)
			c.Header("Retry-After", "1")
		}
		response.ErrorResponse(c, m.status, m.message(err))
		return
	}
	logger.LogError(c.Request.Context(), l, "Unhandled request error", err)
	response.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
}
