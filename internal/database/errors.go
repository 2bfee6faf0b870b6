package database

import "errors"

var (
	// ErrSecretNameMissing means no secret name is configured for the database credentials.
	ErrSecretNameMissing = errors.New("database secret name is not configured")
	// ErrSecretNotFound means the configured secret does not exist.
	ErrSecretNotFound = errors.New("database secret not found")
	// ErrConnectionURIMissing means the secret has no connectionUri field.
	ErrConnectionURIMissing = errors.New("connectionUri missing from database secret")
	// ErrInvalidURI means the stored connection URI cannot be extended.
	ErrInvalidURI = errors.New("invalid connection URI")
	// ErrInvalidName means the database name is not usable.
	ErrInvalidName = errors.New("invalid database name")
	// ErrConnectAttemptsExhausted wraps the last dial error after all retries failed.
	ErrConnectAttemptsExhausted = errors.New("database connect attempts exhausted")
	// ErrNotReady means a connection did not reach the ready state.
	ErrNotReady = errors.New("database connection not ready")
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("database connection closed")
)

// IsConfigError reports errors that retrying cannot fix.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrSecretNameMissing) ||
		errors.Is(err, ErrSecretNotFound) ||
		errors.Is(err, ErrConnectionURIMissing) ||
		errors.Is(err, ErrInvalidURI) ||
		errors.Is(err, ErrInvalidName)
}
