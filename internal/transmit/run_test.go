// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package transmit

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"keycourier/internal/model"
	"keycourier/internal/netx"
	"keycourier/internal/security"
)

// fakeDeployers tracks attempts and fails selected hosts, so Deploy can be
// exercised without network connections.
type fakeDeployers struct {
	mu       sync.Mutex
	attempts []string
	authFail map[string]bool
}

func (f *fakeDeployers) install(t *testing.T) {
	t.Helper()
	orig := NewDeployerFunc
	NewDeployerFunc = func(target model.Target, user string, password security.Secret, prox *netx.SocksProxy, hostKeys *HostKeyStore, config ConnectionConfig) (*Deployer, error) {
		f.mu.Lock()
		f.attempts = append(f.attempts, target.Host)
		f.mu.Unlock()
		if f.authFail[target.Host] {
			return nil, errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]")
		}
		mock := newMockSftpClient()
		mock.dirs[".ssh"] = true
		return &Deployer{sftp: mock}, nil
	}
	t.Cleanup(func() { NewDeployerFunc = orig })
}

func newTestTransmitter(targets model.TargetSet) *Transmitter {
	return New("deploy", security.Secret("pw"), testKey, "id_ed25519.pub", targets, nil, nil)
}

func TestDeployPartialFailureIsolation(t *testing.T) {
	fakes := &fakeDeployers{authFail: map[string]bool{"host2": true}}
	fakes.install(t)

	tr := newTestTransmitter(model.NewTargetSet("host1", "host2", "host3"))
	failed, err := tr.Deploy()
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if len(fakes.attempts) != 3 {
		t.Errorf("expected all 3 hosts attempted, got %d: %v", len(fakes.attempts), fakes.attempts)
	}
	if len(failed) != 1 || failed[0] != "host2" {
		t.Errorf("expected failed set [host2], got %v", failed)
	}
}

func TestDeployDeduplicatesByRawString(t *testing.T) {
	fakes := &fakeDeployers{}
	fakes.install(t)

	// "host1" and "host1:22" resolve to the same endpoint but are distinct
	// raw strings, so both are attempted.
	tr := newTestTransmitter(model.NewTargetSet("host1", "host1", "host1:22"))
	if _, err := tr.Deploy(); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	sort.Strings(fakes.attempts)
	if len(fakes.attempts) != 2 {
		t.Errorf("expected 2 attempts after raw-string dedup, got %v", fakes.attempts)
	}
}

func TestDeployRequiresPayload(t *testing.T) {
	tr := newTestTransmitter(model.NewTargetSet("host1"))
	tr.Key = "   "
	if _, err := tr.Deploy(); err == nil {
		t.Fatal("expected configuration error for empty payload")
	}
}

func TestDeployRequiresTargets(t *testing.T) {
	tr := newTestTransmitter(model.NewTargetSet())
	if _, err := tr.Deploy(); err == nil {
		t.Fatal("expected configuration error for empty target set")
	}
}

func TestAttemptTagsAuthFailure(t *testing.T) {
	fakes := &fakeDeployers{authFail: map[string]bool{"badhost": true}}
	fakes.install(t)

	tr := newTestTransmitter(model.NewTargetSet("badhost"))
	out := tr.attempt(model.Target{Host: "badhost", Port: 22})
	if out == nil {
		t.Fatal("expected a failure outcome")
	}
	if out.Kind != FailureAuth {
		t.Errorf("expected FailureAuth, got %v", out.Kind)
	}
}

func TestAttemptTagsDeployFailure(t *testing.T) {
	orig := NewDeployerFunc
	NewDeployerFunc = func(target model.Target, user string, password security.Secret, prox *netx.SocksProxy, hostKeys *HostKeyStore, config ConnectionConfig) (*Deployer, error) {
		mock := newMockSftpClient()
		mock.statErr[".ssh"] = errors.New("permission denied by policy")
		return &Deployer{sftp: mock}, nil
	}
	t.Cleanup(func() { NewDeployerFunc = orig })

	tr := newTestTransmitter(model.NewTargetSet("host1"))
	out := tr.attempt(model.Target{Host: "host1", Port: 22})
	if out == nil {
		t.Fatal("expected a failure outcome")
	}
	if out.Kind != FailureDeploy {
		t.Errorf("expected FailureDeploy, got %v", out.Kind)
	}
}

func TestAttemptTagsTransportFailure(t *testing.T) {
	orig := NewDeployerFunc
	NewDeployerFunc = func(target model.Target, user string, password security.Secret, prox *netx.SocksProxy, hostKeys *HostKeyStore, config ConnectionConfig) (*Deployer, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	t.Cleanup(func() { NewDeployerFunc = orig })

	tr := newTestTransmitter(model.NewTargetSet("host1"))
	out := tr.attempt(model.Target{Host: "host1", Port: 22})
	if out == nil {
		t.Fatal("expected a failure outcome")
	}
	if out.Kind != FailureTransport {
		t.Errorf("expected FailureTransport, got %v", out.Kind)
	}
}

func TestAttemptClosesSessionOnDeployFailure(t *testing.T) {
	mock := newMockSftpClient()
	mock.statErr[".ssh"] = errors.New("sftp: connection lost")
	orig := NewDeployerFunc
	NewDeployerFunc = func(target model.Target, user string, password security.Secret, prox *netx.SocksProxy, hostKeys *HostKeyStore, config ConnectionConfig) (*Deployer, error) {
		return &Deployer{sftp: mock}, nil
	}
	t.Cleanup(func() { NewDeployerFunc = orig })

	tr := newTestTransmitter(model.NewTargetSet("host1"))
	if out := tr.attempt(model.Target{Host: "host1", Port: 22}); out == nil {
		t.Fatal("expected a failure outcome")
	}
	if !mock.closed {
		t.Error("session must be released even when deployment fails")
	}
}
