package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a provider has no value for a name.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret retrieves a secret by name.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name returns the provider name ("env", "file").
	Name() string

	// Supports reports whether this provider may hold the given secret.
	Supports(name string) bool
}
