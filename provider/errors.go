package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable covers transport failures, timeouts and non-2xx responses
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSchemaMismatch means the response body lacks the expected fields
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnsupportedAsset means the provider has no way to address the asset
	ErrUnsupportedAsset = errors.New("asset not supported by provider")

	// ErrMissingCredentials is returned by Validate when a required setting is empty
	ErrMissingCredentials = errors.New("missing credentials")
)

// Error is a failed provider query
type Error struct {
	Provider string
	Op       Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(provider string, op Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: provider, Op: op, Err: err}
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, fmt.Sprintf(format, args...))
}

func schemaMismatch(err error) error {
	return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
}

func missing(setting string) error {
	return fmt.Errorf("%w: %s is not set", ErrMissingCredentials, setting)
}

// Recoverable reports whether err is a provider failure the fallback resolver absorbs
func Recoverable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrSchemaMismatch) ||
		errors.Is(err, ErrUnsupportedAsset)
}
