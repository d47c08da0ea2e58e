// Package model defines the contract for a single structured-output round trip
// to a language-model provider, and the error every provider reports through.
package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Client makes one generation request. When structured is true the provider is
// asked to reply with a single JSON object.
type Client interface {
	Generate(ctx context.Context, prompt string, structured bool) (string, error)
}

// Category is the coarse failure class of a ProviderError.
type Category string

const (
	CategoryTransport   Category = "transport"
	CategoryTimeout     Category = "timeout"
	CategoryAuth        Category = "auth"
	CategoryRateLimited Category = "rate_limited"
	CategoryCanceled    Category = "canceled"
	CategoryProvider    Category = "provider"
)

// ProviderError is returned by every Client on failure. It never carries partial output.
type ProviderError struct {
	Provider   string
	Category   Category
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider error (%s", e.Provider, e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider string, category Category, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Category:   category,
		StatusCode: statusCode,
		Err:        err,
	}
}

// CategoryFromStatus maps an HTTP status code to a Category.
func CategoryFromStatus(status int) Category {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return CategoryAuth
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return CategoryTimeout
	default:
		return CategoryProvider
	}
}

// Classify turns an arbitrary error from a provider call into a ProviderError.
// An existing ProviderError is returned as is.
func Classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewProviderError(provider, CategoryCanceled, 0, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(provider, CategoryTimeout, 0, err)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return NewProviderError(provider, CategoryTimeout, 0, err)
	}

	return NewProviderError(provider, CategoryTransport, 0, err)
}

// IsCategory reports whether err is a ProviderError of the given category.
func IsCategory(err error, category Category) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Category == category
}
