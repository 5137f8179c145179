package secure

import (
	"bytes"
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// Redacted replaces secret values in formatted output.
const Redacted = "[REDACTED]"

// ErrDestroyed is returned when a Secret is revealed after Destroy.
var ErrDestroyed = errors.New("secret has been destroyed")

// Secret holds a credential encrypted in a memguard enclave. The plaintext only
// exists inside the callback passed to Reveal and is wiped when it returns.
//
// A Secret is write-once: the value is fixed at construction.
type Secret struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	empty     bool
	destroyed bool
}

// NewSecret moves data into a protected enclave. memguard wipes data in the
// process, so the caller's slice is zeroed when NewSecret returns.
func NewSecret(data []byte) *Secret {
	if len(data) == 0 {
		// memguard refuses to seal an empty enclave.
		return &Secret{empty: true}
	}
	return &Secret{enclave: memguard.NewEnclave(data)}
}

// NewSecretFromString copies s into a fresh enclave. The string itself cannot be
// wiped; prefer NewSecret when the bytes are owned by the caller.
func NewSecretFromString(s string) *Secret {
	return NewSecret([]byte(s))
}

// IsEmpty reports whether the secret holds no bytes. A destroyed secret is empty.
func (s *Secret) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.empty || s.destroyed
}

// Reveal decrypts the secret into a locked buffer and hands the plaintext to fn.
// The buffer is destroyed when fn returns, so fn must not retain the slice.
//
//	err := secret.Reveal(func(plaintext []byte) error {
//	    header = servicenow.BasicAuthHeader(username, plaintext)
//	    return nil
//	})
func (s *Secret) Reveal(fn func(plaintext []byte) error) error {
	if s == nil {
		return fn(nil)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return ErrDestroyed
	}
	if s.empty {
		return fn(nil)
	}

	locked, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy releases the enclave. It is idempotent and safe on a nil Secret.
func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	// The enclave is ciphertext; dropping the reference is enough. memguard.Purge
	// in main wipes the session key on exit.
	s.enclave = nil
	s.destroyed = true
}

// String never exposes the value.
func (s *Secret) String() string {
	return Redacted
}

// GoString never exposes the value.
func (s *Secret) GoString() string {
	return Redacted
}

// Scrub replaces every occurrence of a secret's value in msg with Redacted.
// Values of three bytes or fewer are left alone, they match ordinary text too
// often. Destroyed secrets are skipped.
func Scrub(msg string, secrets ...*Secret) string {
	out := []byte(msg)
	for _, s := range secrets {
		_ = s.Reveal(func(plaintext []byte) error {
			if len(plaintext) > 3 {
				out = bytes.ReplaceAll(out, plaintext, []byte(Redacted))
			}
			return nil
		})
	}
	return string(out)
}

// Wipe zeroes b in place. Use it on plaintext copies that leave a Reveal callback,
// such as serialized request bodies.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}
