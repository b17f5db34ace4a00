package service

import (
	"ctchen222/item-registry/internal/api/repository"
	"errors"
)

// Registration and login.
var (
	ErrMissingCredentials = errors.New("both username and password required")
	ErrPolicyViolation    = errors.New("password rejected by policy")
	ErrDuplicateUsername  = errors.New("username already registered")
	ErrUnknownUser        = errors.New("unknown user")
	ErrWrongPassword      = errors.New("wrong password")
)

// Session token validation. The guard reports all of them as ErrUnauthorized.
var (
	ErrUnauthorized    = errors.New("could not validate credentials")
	ErrTokenExpired    = errors.New("token expired")
	ErrBadSignature    = errors.New("token signature invalid")
	ErrSuperseded      = errors.New("token superseded by a newer login")
	ErrSessionNotFound = errors.New("no active session")
	ErrMalformedToken  = errors.New("malformed token")
)

// Items and transfers.
var (
	ErrNotFound         = errors.New("item not found")
	ErrDuplicateTitle   = errors.New("item title already exists")
	ErrUnknownAchiever  = errors.New("unknown achiever")
	ErrSameOwner        = errors.New("cannot send an item to yourself")
	ErrUnknownItem      = errors.New("unknown item")
	ErrMalformedPayload = errors.New("Invalid key")
	ErrNotYourLink      = errors.New("Sorry, this link isn't for you")
	ErrAlreadyYours     = errors.New("item already yours")
	ErrOwnerChanged     = errors.New("item no longer belongs to the sender")
)

// ErrStoreUnavailable marks infrastructure failures. It is never a domain
// rejection and the request may be retried.
var ErrStoreUnavailable = repository.ErrUnavailable
