package shop

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingOrderDetails indicates amount or product was absent.
	ErrMissingOrderDetails = errors.New("missing order details")
	// ErrUnknownPaymentMethod indicates an unregistered provider key.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	// ErrNoProviderConfigured indicates a deployment with no usable
	// payment provider at all.
	ErrNoProviderConfigured = errors.New("no payment provider is configured")
	// ErrChatNotFound indicates an unknown chat id.
	ErrChatNotFound = errors.New("chat not found")
	// ErrEmptyMessage indicates a blank chat message body.
	ErrEmptyMessage = errors.New("message is required")
	// ErrInvalidChatStatus indicates a chat status outside open/closed.
	ErrInvalidChatStatus = errors.New("valid status is required (open or closed)")
	// ErrScriptNotFound indicates an unknown script slug.
	ErrScriptNotFound = errors.New("script not found")
	// ErrScriptExists indicates a duplicate script slug on create.
	ErrScriptExists = errors.New("script with this slug already exists")
	// ErrMissingScriptFields indicates a script create without the
	// required fields.
	ErrMissingScriptFields = errors.New("missing required fields: slug, title, category")
)

// ProviderError wraps a payment-provider failure during order creation.
// No partial state exists when it is returned.
type ProviderError struct {
	Label string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("could not create payment via %s: %v", e.Label, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
