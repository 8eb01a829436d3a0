// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

package transmit

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// mockFile is an in-memory remote file.
type mockFile struct {
	Buffer bytes.Buffer
}

// mockFileInfo satisfies os.FileInfo for Stat results.
type mockFileInfo struct {
	name string
	dir  bool
}

func (i mockFileInfo) Name() string       { return i.name }
func (i mockFileInfo) Size() int64        { return 0 }
func (i mockFileInfo) Mode() fs.FileMode  { return 0 }
func (i mockFileInfo) ModTime() time.Time { return time.Time{} }
func (i mockFileInfo) IsDir() bool        { return i.dir }
func (i mockFileInfo) Sys() any           { return nil }

// mockHandle is a read or write handle over a mockFile.
type mockHandle struct {
	r *bytes.Reader
	f *mockFile
}

func (h *mockHandle) Read(p []byte) (int, error) {
	if h.r == nil {
		return 0, io.EOF
	}
	return h.r.Read(p)
}

func (h *mockHandle) Write(p []byte) (int, error) {
	if h.f == nil {
		return 0, fmt.Errorf("write on read-only handle")
	}
	return h.f.Buffer.Write(p)
}

func (h *mockHandle) Close() error { return nil }

// mockSftpClient is an in-memory sftpClient so the remote protocol can be
// exercised without a network connection.
type mockSftpClient struct {
	files   map[string]*mockFile
	dirs    map[string]bool
	perms   map[string]os.FileMode
	statErr map[string]error
	closed  bool
}

func newMockSftpClient() *mockSftpClient {
	return &mockSftpClient{
		files:   map[string]*mockFile{},
		dirs:    map[string]bool{},
		perms:   map[string]os.FileMode{},
		statErr: map[string]error{},
	}
}

func (m *mockSftpClient) Stat(path string) (os.FileInfo, error) {
	if err, ok := m.statErr[path]; ok {
		return nil, err
	}
	if m.dirs[path] {
		return mockFileInfo{name: path, dir: true}, nil
	}
	if _, ok := m.files[path]; ok {
		return mockFileInfo{name: path}, nil
	}
	return nil, os.ErrNotExist
}

func (m *mockSftpClient) Mkdir(path string) error {
	if m.dirs[path] {
		return fmt.Errorf("mkdir %s: file exists", path)
	}
	m.dirs[path] = true
	return nil
}

func (m *mockSftpClient) Chmod(path string, mode os.FileMode) error {
	m.perms[path] = mode
	return nil
}

func (m *mockSftpClient) Create(path string) (sftpFile, error) {
	f := &mockFile{}
	m.files[path] = f
	return &mockHandle{f: f}, nil
}

func (m *mockSftpClient) Open(path string) (sftpFile, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &mockHandle{r: bytes.NewReader(f.Buffer.Bytes())}, nil
}

func (m *mockSftpClient) OpenFile(path string, flags int) (sftpFile, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &mockHandle{f: f}, nil
}

func (m *mockSftpClient) Close() error {
	m.closed = true
	return nil
}
