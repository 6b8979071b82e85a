// Package secrets keeps the agent's shared-secret token in the OS credential
// store (macOS Keychain, Windows Credential Manager, Secret Service, KWallet
// or pass), so it does not have to live in a plain-text config file.
package secrets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our namespace in the credential store.
const ServiceName = "termbridge"

// KeyAgentToken is the item holding the agent token.
const KeyAgentToken = "agent_token"

// ErrNotFound is returned when no token has been stored.
var ErrNotFound = errors.New("token not found in keyring")

// Store reads and writes the agent token.
type Store interface {
	Token() (string, error)
	SetToken(token string) error
	DeleteToken() error
}

// Keyring is a Store backed by the OS credential store. The keyring is
// opened lazily on first use.
type Keyring struct {
	mu   sync.Mutex
	ring keyring.Keyring
	open func() (keyring.Keyring, error)
}

// NewKeyring creates a Keyring using the platform's native backends.
func NewKeyring() *Keyring {
	return &Keyring{open: openRing}
}

// NewKeyringWith wraps an already opened keyring.
func NewKeyringWith(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func openRing() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		PassPrefix:    ServiceName,
		WinCredPrefix: ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (k *Keyring) get() (keyring.Keyring, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.ring != nil {
		return k.ring, nil
	}
	ring, err := k.open()
	if err != nil {
		return nil, err
	}
	k.ring = ring
	return ring, nil
}

// Token returns the stored token or ErrNotFound.
func (k *Keyring) Token() (string, error) {
	ring, err := k.get()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(KeyAgentToken)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return string(item.Data), nil
}

// SetToken stores token, replacing any previous one.
func (k *Keyring) SetToken(token string) error {
	ring, err := k.get()
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{
		Key:         KeyAgentToken,
		Data:        []byte(token),
		Label:       "termbridge agent token",
		Description: "Shared secret sent in the Authorization header",
	})
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func (k *Keyring) DeleteToken() error {
	ring, err := k.get()
	if err != nil {
		return err
	}
	if err := ring.Remove(KeyAgentToken); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
