// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package transmit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"keycourier/internal/i18n"
	"keycourier/internal/logging"
)

const (
	sshDir       = ".ssh"
	authKeysFile = "authorized_keys"

	sshDirMode   = 0700
	authKeysMode = 0600
)

// isNotExist reports the canonical SFTP not-found condition. Anything
// else (permission denied, dropped transport) must not be treated as
// absence.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// PutPublicKey runs the remote bootstrap-and-append protocol for one
// trimmed public key line: ensure ~/.ssh exists (0700), then create
// authorized_keys (0600) with the key, or append the key if the file
// exists without it. Re-running against a host that already has the key
// is a no-op.
func (d *Deployer) PutPublicKey(key string) error {
	if err := d.ensureSSHDir(); err != nil {
		return err
	}
	return d.putKey(key)
}

// ensureSSHDir makes sure the .ssh directory exists with mode 0700.
func (d *Deployer) ensureSSHDir() error {
	_, err := d.sftp.Stat(sshDir)
	if err == nil {
		return nil
	}
	if !isNotExist(err) {
		return fmt.Errorf("failed to probe %s directory: %w", sshDir, err)
	}

	logging.Warnf(i18n.T("transmit.dir_missing"), sshDir)
	if err := d.sftp.Mkdir(sshDir); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", sshDir, err)
	}
	if err := d.sftp.Chmod(sshDir, sshDirMode); err != nil {
		return fmt.Errorf("failed to chmod %s directory: %w", sshDir, err)
	}
	return nil
}

func (d *Deployer) putKey(key string) error {
	remotePath := path.Join(sshDir, authKeysFile)

	if _, err := d.sftp.Stat(remotePath); err != nil {
		if !isNotExist(err) {
			return fmt.Errorf("failed to probe %s: %w", remotePath, err)
		}
		logging.Warnf(i18n.T("transmit.file_missing"), remotePath)
		return d.createAuthorizedKeys(remotePath, key)
	}

	found, err := d.keyExists(remotePath, key)
	if err != nil {
		return err
	}
	if found {
		logging.Warnf(i18n.T("transmit.key_exists"), remotePath)
		return nil
	}
	return d.appendKey(remotePath, key)
}

// createAuthorizedKeys writes the key as the new file content and locks
// the permissions down to 0600.
func (d *Deployer) createAuthorizedKeys(remotePath, key string) error {
	f, err := d.sftp.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}
	if _, err := f.Write([]byte(key)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", remotePath, err)
	}
	if err := d.sftp.Chmod(remotePath, authKeysMode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", remotePath, err)
	}

	logging.Infof(i18n.T("transmit.key_added"), remotePath)
	return nil
}

// keyExists scans the remote file line by line for an exact match of the
// trimmed key. Comparison is literal text, not fingerprint-based.
func (d *Deployer) keyExists(remotePath, key string) (bool, error) {
	f, err := d.sftp.Open(remotePath)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", remotePath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == key {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read %s: %w", remotePath, err)
	}
	return false, nil
}

// appendKey adds the key as a new line at the end of the file, leaving
// every existing line untouched.
func (d *Deployer) appendKey(remotePath, key string) error {
	f, err := d.sftp.OpenFile(remotePath, os.O_WRONLY|os.O_APPEND)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", remotePath, err)
	}
	if _, err := f.Write([]byte("\n" + key)); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", remotePath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", remotePath, err)
	}

	logging.Infof(i18n.T("transmit.key_appended"), remotePath)
	return nil
}
