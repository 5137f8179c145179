package secretsource

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringAPI reads an item from the OS keyring.
type KeyringAPI interface {
	Get(service, user string) (string, error)
}

// osKeyring uses the platform keyring: Keychain, Secret Service or Windows
// Credential Manager.
type osKeyring struct{}

func (osKeyring) Get(service, user string) (string, error) {
	return keyring.Get(service, user)
}

func (r *Resolver) fetchKeyring(key string) ([]byte, error) {
	service, user, err := splitKeyring(key)
	if err != nil {
		return nil, err
	}
	value, err := r.keyring.Get(service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("keyring item %s/%s not found", service, user)
		}
		return nil, err
	}
	return []byte(value), nil
}
