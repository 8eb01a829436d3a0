// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package security

import (
	"fmt"
	"strings"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	s := Secret("hunter2")

	if s.String() != "[SECRET]" {
		t.Errorf("String() leaked: %q", s.String())
	}
	if out := fmt.Sprintf("%v %s %#v", s, s, s); strings.Contains(out, "hunter2") {
		t.Errorf("fmt leaked secret: %q", out)
	}
	if txt, _ := s.MarshalText(); string(txt) != "[SECRET]" {
		t.Errorf("MarshalText leaked: %q", txt)
	}
}

func TestSecretBytesAndZero(t *testing.T) {
	s := Secret("topsecret")
	b := s.Bytes()
	if string(b) != "topsecret" {
		t.Fatalf("Bytes() returned %q", b)
	}

	// mutating the copy must not affect the original
	b[0] = 'X'
	if string(s) != "topsecret" {
		t.Fatalf("Bytes() did not copy")
	}

	s.Zero()
	for i, c := range s {
		if c != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}
