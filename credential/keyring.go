// SPDX-License-Identifier: GPL-3.0-or-later
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "gitlab-issue-by-mail"

	GitlabTokenKey = "gitlab-token"
)

var ErrNotFound = errors.New("credential not found")

// Keyring reads and writes secrets in the system keyring. The keyring is opened on first use
// so runs that never need it do not touch the keyring backends.
type Keyring struct {
	open func() (keyring.Keyring, error)
	ring keyring.Keyring
}

func NewKeyring() *Keyring {
	return &Keyring{open: openKeyring}
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/gitlab-issue-by-mail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("gitlab-issue-by-mail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open keyring: %w", err)
	}
	return ring, nil
}

func (k *Keyring) ensureOpen() (keyring.Keyring, error) {
	if k.ring == nil {
		ring, err := k.open()
		if err != nil {
			return nil, err
		}
		k.ring = ring
	}
	return k.ring, nil
}

// Get returns the secret stored under key, ErrNotFound if there is none.
func (k *Keyring) Get(key string) (string, error) {
	ring, err := k.ensureOpen()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("could not get credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("could not get credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

func (k *Keyring) Set(key, value string) error {
	ring, err := k.ensureOpen()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: fmt.Sprintf("%s %s", serviceName, key),
	})
	if err != nil {
		return fmt.Errorf("could not set credential %q: %w", key, err)
	}

	return nil
}
