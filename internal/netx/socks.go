// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

// Package netx provides the optional SOCKS5 transport used to reach
// targets that are not directly routable.
package netx

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultDialTimeout bounds the TCP connect to the proxy itself.
const DefaultDialTimeout = 10 * time.Second

// SocksProxy describes an optional SOCKS5 proxy. Host and Port must both
// be set for proxying to take effect; a partial pair means targets are
// dialed directly by the caller.
type SocksProxy struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Enabled reports whether both proxy fields are present.
func (p *SocksProxy) Enabled() bool {
	return p != nil && p.Host != "" && p.Port > 0
}

// Addr returns the proxy's dialable address.
func (p *SocksProxy) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Dial opens a TCP connection to destHost:destPort tunneled through the
// SOCKS5 proxy. The returned connection is owned by the caller and must be
// closed exactly once. There are no retries; proxy failures propagate
// immediately.
func (p *SocksProxy) Dial(destHost string, destPort int) (net.Conn, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("no socks5 proxy configured")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	d, err := proxy.SOCKS5("tcp", p.Addr(), nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to set up socks5 proxy %s: %w", p.Addr(), err)
	}

	dest := net.JoinHostPort(destHost, strconv.Itoa(destPort))
	conn, err := d.Dial("tcp", dest)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy %s failed to tunnel to %s: %w", p.Addr(), dest, err)
	}
	return conn, nil
}
