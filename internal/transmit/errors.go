// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package transmit

import (
	"fmt"
	"strings"
)

// FailureKind categorizes a failed host attempt.
type FailureKind int

const (
	// FailureAuth means the remote side rejected the credentials.
	FailureAuth FailureKind = iota
	// FailureTransport means the host was unreachable, the proxy tunnel
	// failed, or the SSH handshake (including host key checks) broke down.
	FailureTransport
	// FailureDeploy means the remote file protocol failed after a
	// successful handshake.
	FailureDeploy
)

// String returns a short tag for logs.
func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth"
	case FailureTransport:
		return "transport"
	case FailureDeploy:
		return "deploy"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one host attempt. A nil *Outcome from
// the attempt function means success.
type Outcome struct {
	Host string
	Kind FailureKind
	Err  error
}

// IsAuthenticationError reports whether err looks like a credential
// rejection from the SSH layer.
func IsAuthenticationError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "permission denied")
}

// IsConnectionTimeoutError reports whether err looks like a timed-out
// connection attempt.
func IsConnectionTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded")
}

// IsConnectionRefusedError reports whether err looks like a refused or
// unroutable connection.
func IsConnectionRefusedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no route to host")
}

// IsHostKeyError reports whether err stems from host key verification.
func IsHostKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "host key mismatch") ||
		strings.Contains(msg, "host key verification failed") ||
		strings.Contains(msg, "knownhosts: key mismatch")
}

// ClassifyConnectionError wraps a connection error with a message naming
// the host and the likely cause.
func ClassifyConnectionError(host string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsConnectionTimeoutError(err):
		return fmt.Errorf("connection to %s timed out: %w", host, err)
	case IsConnectionRefusedError(err):
		return fmt.Errorf("connection to %s refused: %w", host, err)
	case IsAuthenticationError(err):
		return fmt.Errorf("authentication failed for %s: %w", host, err)
	case IsHostKeyError(err):
		return fmt.Errorf("host key verification failed for %s: %w", host, err)
	default:
		return fmt.Errorf("failed to connect to %s: %w", host, err)
	}
}
