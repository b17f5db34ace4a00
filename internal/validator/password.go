package validator

import (
	"errors"
	"strings"
	"unicode"
)

// PasswordPolicy decides whether a plaintext password may be registered.
// Check returns a user-facing reason on rejection.
type PasswordPolicy interface {
	Check(password string) error
}

var (
	ErrNotASCII      = errors.New("Weak password: Letters must be ASCII")
	ErrLength        = errors.New("Weak password: Password length should be at least 8 but no more than 14 symbols")
	ErrNoDigit       = errors.New("Weak password: At least one digit is required")
	ErrNoLetter      = errors.New("Weak password: At least one letter is required")
	ErrNoPunctuation = errors.New("Weak password: At least one punctuation sign is required")
	ErrSingleCase    = errors.New("Weak password: Letters must be in different case")
)

const (
	minPasswordLength = 8
	maxPasswordLength = 14
)

// DefaultPolicy requires 8 to 14 ASCII characters with at least one letter,
// one digit, one punctuation sign and letters of both cases.
type DefaultPolicy struct{}

func (DefaultPolicy) Check(password string) error {
	var hasLetter, hasDigit, hasPunct bool
	for _, r := range password {
		if r > unicode.MaxASCII {
			return ErrNotASCII
		}
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case r == '_' || !unicode.IsLetter(r) && !unicode.IsDigit(r):
			hasPunct = true
		}
	}
	if !hasLetter {
		return ErrNoLetter
	}
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return ErrLength
	}
	if !hasDigit {
		return ErrNoDigit
	}
	if !hasPunct {
		return ErrNoPunctuation
	}
	if password == strings.ToUpper(password) || password == strings.ToLower(password) {
		return ErrSingleCase
	}
	return nil
}

// PolicyFunc adapts a plain function to PasswordPolicy.
type PolicyFunc func(password string) error

func (f PolicyFunc) Check(password string) error { return f(password) }
