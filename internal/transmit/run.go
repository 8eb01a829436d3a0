// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

// Package transmit implements the per-host deployment protocol: connect
// (optionally through a SOCKS5 proxy), authenticate, and idempotently
// place a public key into the remote authorized_keys file.
package transmit

import (
	"errors"
	"strings"

	"keycourier/internal/i18n"
	"keycourier/internal/logging"
	"keycourier/internal/model"
	"keycourier/internal/netx"
	"keycourier/internal/security"
)

// Transmitter pushes a single public key to every target in a set. Each
// host attempt is fully isolated: one bad host never aborts the batch.
type Transmitter struct {
	Username string
	Password security.Secret
	Key      string // trimmed public key line
	KeyFile  string // origin path, used in log messages only
	Targets  model.TargetSet
	Proxy    *netx.SocksProxy
	HostKeys *HostKeyStore
	Config   ConnectionConfig
}

// New assembles a Transmitter with default connection settings.
func New(username string, password security.Secret, key, keyFile string, targets model.TargetSet, proxy *netx.SocksProxy, hostKeys *HostKeyStore) *Transmitter {
	return &Transmitter{
		Username: username,
		Password: password,
		Key:      key,
		KeyFile:  keyFile,
		Targets:  targets,
		Proxy:    proxy,
		HostKeys: hostKeys,
		Config:   DefaultConnectionConfig(),
	}
}

// Deploy runs the per-host protocol sequentially for every target and
// returns the hosts that failed. A non-nil error means a precondition
// failed and no host was attempted.
func (t *Transmitter) Deploy() ([]string, error) {
	if strings.TrimSpace(t.Key) == "" {
		return nil, errors.New(i18n.T("transmit.no_pubkey"))
	}
	if len(t.Targets) == 0 {
		return nil, errors.New(i18n.T("transmit.no_targets"))
	}

	var failed []string
	for _, target := range t.Targets.Targets() {
		if out := t.attempt(target); out != nil {
			t.logFailure(out)
			failed = append(failed, out.Host)
		}
	}

	if len(failed) > 0 {
		logging.Warnf(i18n.T("transmit.errored_hosts"), strings.Join(failed, ", "))
	}
	logging.Infof(i18n.T("transmit.finished"), t.KeyFile)
	return failed, nil
}

// attempt runs the full procedure for one target. It returns nil on
// success or a tagged Outcome on failure. The session and any proxy
// socket are released before the function returns, on every path.
func (t *Transmitter) attempt(target model.Target) *Outcome {
	logging.Infof(i18n.T("transmit.start_host"), target.Host, target.Port)

	deployer, err := NewDeployerFunc(target, t.Username, t.Password, t.Proxy, t.HostKeys, t.Config)
	if err != nil {
		kind := FailureTransport
		if IsAuthenticationError(err) {
			kind = FailureAuth
		}
		return &Outcome{Host: target.Host, Kind: kind, Err: err}
	}
	defer deployer.Close()

	if err := deployer.PutPublicKey(t.Key); err != nil {
		return &Outcome{Host: target.Host, Kind: FailureDeploy, Err: err}
	}
	return nil
}

func (t *Transmitter) logFailure(out *Outcome) {
	switch out.Kind {
	case FailureAuth:
		logging.Errorf(i18n.T("transmit.auth_failed"), out.Host, out.Err)
	case FailureTransport:
		logging.Errorf(i18n.T("transmit.transport_failed"), out.Host, out.Err)
	default:
		logging.Errorf(i18n.T("transmit.deploy_failed"), out.Host, out.Err)
	}
}
