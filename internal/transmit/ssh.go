// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package transmit

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"keycourier/internal/model"
	"keycourier/internal/netx"
	"keycourier/internal/security"
)

// DefaultConnectTimeout bounds the TCP connect and SSH handshake per host.
const DefaultConnectTimeout = 10 * time.Second

// ConnectionConfig holds per-connection tuning.
type ConnectionConfig struct {
	ConnectTimeout time.Duration
}

// DefaultConnectionConfig returns the stock connection settings.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{ConnectTimeout: DefaultConnectTimeout}
}

// sshClientIface is the minimal surface of *ssh.Client used here, split
// out so tests can simulate a client without a real connection.
type sshClientIface interface {
	Close() error
}

// sftpFile is the subset of *sftp.File used by key deployment.
type sftpFile interface {
	io.ReadWriteCloser
}

// sftpClient is the subset of *sftp.Client the deployer needs. Tests
// substitute an in-memory implementation.
type sftpClient interface {
	Stat(path string) (os.FileInfo, error)
	Mkdir(path string) error
	Chmod(path string, mode os.FileMode) error
	Create(path string) (sftpFile, error)
	Open(path string) (sftpFile, error)
	OpenFile(path string, flags int) (sftpFile, error)
	Close() error
}

// sftpAdapter bridges *sftp.Client to the sftpClient interface.
type sftpAdapter struct {
	c *sftp.Client
}

func (a sftpAdapter) Stat(path string) (os.FileInfo, error) { return a.c.Stat(path) }
func (a sftpAdapter) Mkdir(path string) error               { return a.c.Mkdir(path) }
func (a sftpAdapter) Chmod(path string, mode os.FileMode) error {
	return a.c.Chmod(path, mode)
}
func (a sftpAdapter) Create(path string) (sftpFile, error) {
	f, err := a.c.Create(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
func (a sftpAdapter) Open(path string) (sftpFile, error) {
	f, err := a.c.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}
func (a sftpAdapter) OpenFile(path string, flags int) (sftpFile, error) {
	f, err := a.c.OpenFile(path, flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}
func (a sftpAdapter) Close() error { return a.c.Close() }

// Deployer owns the authenticated session for exactly one host attempt.
// It is created fresh per target and must be closed before the next
// target's connection is opened.
type Deployer struct {
	client sshClientIface
	sftp   sftpClient
	proxy  net.Conn // tunneled socket when a proxy is in use, nil otherwise
}

// NewDeployerFunc creates deployers; it is a variable so tests can inject
// fakes without real network connections.
var NewDeployerFunc = NewDeployer

// NewDeployer dials the target (directly or through the SOCKS5 proxy),
// authenticates with the password, and opens an SFTP session on top.
func NewDeployer(target model.Target, user string, password security.Secret, prox *netx.SocksProxy, hostKeys *HostKeyStore, config ConnectionConfig) (*Deployer, error) {
	sshConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(string(password.Bytes()))},
		HostKeyCallback: hostKeys.Callback(),
		Timeout:         config.ConnectTimeout,
	}

	var client *ssh.Client
	var proxyConn net.Conn

	if prox.Enabled() {
		conn, err := prox.Dial(target.Host, target.Port)
		if err != nil {
			return nil, err
		}
		c, chans, reqs, err := ssh.NewClientConn(conn, target.Addr(), sshConfig)
		if err != nil {
			conn.Close()
			return nil, ClassifyConnectionError(target.Host, err)
		}
		client = ssh.NewClient(c, chans, reqs)
		proxyConn = conn
	} else {
		var err error
		client, err = ssh.Dial("tcp", target.Addr(), sshConfig)
		if err != nil {
			return nil, ClassifyConnectionError(target.Host, err)
		}
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		if proxyConn != nil {
			proxyConn.Close()
		}
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	return &Deployer{
		client: client,
		sftp:   sftpAdapter{c: sftpClient},
		proxy:  proxyConn,
	}, nil
}

// Close releases the SFTP session, the SSH connection and, if present,
// the proxy socket. Safe to call once per successful NewDeployer.
func (d *Deployer) Close() {
	if d.sftp != nil {
		d.sftp.Close()
	}
	if d.client != nil {
		d.client.Close()
	}
	if d.proxy != nil {
		d.proxy.Close()
	}
}
