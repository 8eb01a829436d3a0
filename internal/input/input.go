// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

// Package input loads the local public key payload and the target host
// list. Failures here are fatal for the whole run: no host is contacted
// until both reads have succeeded.
package input

import (
	"fmt"
	"os"
	"strings"

	"keycourier/internal/i18n"
	"keycourier/internal/logging"
	"keycourier/internal/model"
)

// ReadPublicKey loads and trims the public key payload.
func ReadPublicKey(path string) (string, error) {
	logging.Infof(i18n.T("input.reading_pubkey"), path)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf(i18n.T("input.read_pubkey_failed"), path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ReadHostsFile reads a whitespace-delimited hosts file.
func ReadHostsFile(path string) ([]string, error) {
	logging.Infof(i18n.T("input.reading_hosts"), path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(i18n.T("input.read_hosts_failed"), path, err)
	}
	return strings.Fields(string(data)), nil
}

// CollectTargets merges direct host arguments and an optional hosts file
// into a raw-string target set.
func CollectTargets(hosts []string, hostsFile string) (model.TargetSet, error) {
	set := model.NewTargetSet(hosts...)
	if hostsFile != "" {
		fromFile, err := ReadHostsFile(hostsFile)
		if err != nil {
			return nil, err
		}
		set.Add(fromFile...)
	}
	return set, nil
}
