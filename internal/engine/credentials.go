package engine

import (
	"fmt"

	"github.com/tartampluch/go-shamsi/internal/config"
	"github.com/zalando/go-keyring"
)

// CredentialStore resolves the password of a remote vCard account.
type CredentialStore interface {
	Get(user string) (string, error)
	Set(user, password string) error
}

// KeyringCredentials stores passwords in the operating system keyring.
type KeyringCredentials struct {
	Service string
}

// NewKeyringCredentials uses the application keyring service name.
func NewKeyringCredentials() KeyringCredentials {
	return KeyringCredentials{Service: config.KeyringService}
}

// Get returns the password stored for user.
func (k KeyringCredentials) Get(user string) (string, error) {
	p, err := keyring.Get(k.Service, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrKeyring, err)
	}
	return p, nil
}

// Set stores or replaces the password for user.
func (k KeyringCredentials) Set(user, password string) error {
	if err := keyring.Set(k.Service, user, password); err != nil {
		return fmt.Errorf("%s: %w", config.ErrKeyring, err)
	}
	return nil
}
