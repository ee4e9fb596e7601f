// Package keyring keeps device secrets, the PostgreSQL connection string
// and the API signing key, in the OS keyring.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/leaderreps/leaderreps/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the name.
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Secret names a keyring entry.
type Secret string

const (
	DatabaseConnection Secret = constants.DefaultKeyringUser
	JWTSecret          Secret = "api-signing-key"
)

func Get(s Secret) (string, error) {
	v, err := keyring.Get(constants.AppName, string(s))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func Set(s Secret, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", s)
	}
	if err := keyring.Set(constants.AppName, string(s), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", s, err)
	}
	return nil
}

func Delete(s Secret) error {
	err := keyring.Delete(constants.AppName, string(s))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s from keyring: %w", s, err)
	}
	return nil
}

// Lookup returns the stored secret, or fallback when none is stored or the
// keyring is unavailable.
func Lookup(s Secret, fallback string) string {
	v, err := Get(s)
	if err != nil {
		return fallback
	}
	return v
}

// IsAvailable is a best-effort check that the OS keyring answers.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
