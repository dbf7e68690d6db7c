package types

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidProviderID = errors.New("invalid provider")
	ErrMissingAPIKey     = errors.New("missing API key")

	// Provider errors
	ErrProviderNotFound     = errors.New("provider not found")
	ErrNoProvidersAvailable = errors.New("no providers available")
	ErrProviderTimeout      = errors.New("provider timeout")

	// Response errors
	ErrInvalidResponse = errors.New("invalid response from provider")
)

// ProviderError wraps provider-specific errors
type ProviderError struct {
	Provider ProviderID
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ConfigValidationError reports a configuration value that failed coercion
// or violated its declared bounds
type ConfigValidationError struct {
	Provider   ProviderID
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("[%s] invalid %s value %v: %s", e.Provider, e.Field, e.Value, e.Constraint)
}
