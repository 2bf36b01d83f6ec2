// Package sink persists exported documents and binaries.
package sink

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var ErrEmptyPath = errors.New("sink path is empty")

// Sink writes files. Callers avoid collisions with sanitize.UniquePath and Exists.
type Sink interface {
	WriteText(path, content string) error
	WriteBytes(path string, data []byte) error
	Exists(path string) bool
}

// FS writes to the local filesystem, creating parent directories as needed.
type FS struct{}

func NewFS() *FS {
	return &FS{}
}

func (f *FS) WriteText(path, content string) error {
	return f.WriteBytes(path, []byte(content))
}

func (f *FS) WriteBytes(path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func (f *FS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// Memory keeps written files in memory. It backs dry runs and tests.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte

	// FailOn, when set, makes writes to matching paths fail.
	FailOn func(path string) bool
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string][]byte)}
}

func (m *Memory) WriteText(path, content string) error {
	return m.WriteBytes(path, []byte(content))
}

func (m *Memory) WriteBytes(path string, data []byte) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	if m.FailOn != nil && m.FailOn(path) {
		return errors.Errorf("write %s: refused", path)
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.files[filepath.Clean(path)] = buf
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(path string) bool {
	m.mu.RLock()
	_, ok := m.files[filepath.Clean(path)]
	m.mu.RUnlock()
	return ok
}

// Read returns the content stored at path.
func (m *Memory) Read(path string) ([]byte, bool) {
	m.mu.RLock()
	data, ok := m.files[filepath.Clean(path)]
	m.mu.RUnlock()
	return data, ok
}

// Paths lists stored paths in lexical order.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	m.mu.RUnlock()
	sort.Strings(paths)
	return paths
}
