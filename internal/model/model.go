// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"fmt"
	"net"
	"strconv"
)

// DefaultPort is the SSH port used when a target string carries no
// usable port segment.
const DefaultPort = 22

// Target represents one remote endpoint that should receive the key.
type Target struct {
	Host string
	Port int
}

// String returns the host:port representation.
func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Addr returns the dialable address for the target.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseTarget parses a raw "host" or "host:port" string. A missing or
// malformed port segment falls back to DefaultPort; the host itself is
// never dropped, so every raw entry stays deployable.
func ParseTarget(raw string) Target {
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return Target{Host: raw, Port: DefaultPort}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Target{Host: host, Port: DefaultPort}
	}
	return Target{Host: host, Port: port}
}

// TargetSet deduplicates targets by their literal source string. Two
// differently written strings that resolve to the same endpoint are kept
// as distinct entries; parsing happens at iteration time.
type TargetSet map[string]struct{}

// NewTargetSet builds a set from raw host strings.
func NewTargetSet(raw ...string) TargetSet {
	s := make(TargetSet, len(raw))
	s.Add(raw...)
	return s
}

// Add inserts raw host strings, ignoring empty ones.
func (s TargetSet) Add(raw ...string) {
	for _, r := range raw {
		if r == "" {
			continue
		}
		s[r] = struct{}{}
	}
}

// Targets parses every raw entry. Iteration order is not guaranteed and
// callers must not depend on it.
func (s TargetSet) Targets() []Target {
	out := make([]Target, 0, len(s))
	for raw := range s {
		out = append(out, ParseTarget(raw))
	}
	return out
}
