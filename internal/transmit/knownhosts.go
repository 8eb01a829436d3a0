// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package transmit

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"keycourier/internal/i18n"
	"keycourier/internal/logging"
)

// HostKeyStore implements trust-on-first-use: the first key a host
// presents is recorded into a known_hosts file and every later
// connection must present exactly that key.
type HostKeyStore struct {
	path string
	mu   sync.Mutex
}

// NewHostKeyStore returns a store backed by the given known_hosts file.
// The file does not need to exist yet.
func NewHostKeyStore(path string) *HostKeyStore {
	return &HostKeyStore{path: path}
}

// Path returns the backing file location.
func (s *HostKeyStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Callback returns an ssh.HostKeyCallback enforcing the store's policy.
func (s *HostKeyStore) Callback() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return s.check(hostname, remote, key)
	}
}

func (s *HostKeyStore) check(hostname string, remote net.Addr, key ssh.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	verify, err := knownhosts.New(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load known_hosts file %s: %w", s.path, err)
		}
		// No file yet: first contact with any host.
		return s.record(hostname, key)
	}

	err = verify(hostname, remote, key)
	if err == nil {
		return nil
	}

	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
		// Unknown host: trust on first use.
		return s.record(hostname, key)
	}

	// Recorded key differs or the lookup itself failed.
	return fmt.Errorf("host key verification failed for %s: %w", hostname, err)
}

// record appends the presented key to the known_hosts file.
func (s *HostKeyStore) record(hostname string, key ssh.PublicKey) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create known_hosts dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts file %s: %w", s.path, err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to record host key for %s: %w", hostname, err)
	}

	logging.Infof(i18n.T("transmit.host_key_recorded"), hostname)
	return nil
}
