// Package businessflow contains the core business logic and use cases for authentication and link management
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Account-related errors
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Short link errors
	ErrShortLinkNotFound = errors.New("short link not found")

	// Configuration errors
	ErrBaseURLNotConfigured = errors.New("base URL is not configured")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsShortLinkNotFound(err error) bool {
	return errors.Is(err, ErrShortLinkNotFound)
}

func IsBaseURLNotConfigured(err error) bool {
	return errors.Is(err, ErrBaseURLNotConfigured)
}
