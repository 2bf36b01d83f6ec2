package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

var ErrUnknownBackend = errors.New("unknown state backend")

// Tracker remembers which messages were exported and where.
type Tracker interface {
	AlreadyExported(key string) bool
	MarkExported(key, documentPath string) error
	Snapshot() Snapshot
	Close() error
}

type Snapshot struct {
	Exported int
}

// Open returns the tracker for backend rooted at stateDir. With persist
// false, previously stored keys are still honoured but nothing new is written.
func Open(backend, stateDir string, persist bool) (Tracker, error) {
	switch backend {
	case "", BackendJSONL:
		tracker, err := NewFileTracker(stateDir, persist)
		if err != nil {
			return nil, err
		}
		return tracker, nil
	case BackendSQLite:
		tracker, err := NewSQLiteTracker(stateDir, persist)
		if err != nil {
			return nil, err
		}
		return tracker, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

type MemoryTracker struct {
	mu       sync.RWMutex
	exported map[string]string
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{exported: make(map[string]string)}
}

func (m *MemoryTracker) AlreadyExported(key string) bool {
	if key == "" {
		return false
	}

	m.mu.RLock()
	_, ok := m.exported[key]
	m.mu.RUnlock()
	return ok
}

func (m *MemoryTracker) MarkExported(key, documentPath string) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	m.exported[key] = documentPath
	m.mu.Unlock()
	return nil
}

// DocumentPath returns the stored document path for key.
func (m *MemoryTracker) DocumentPath(key string) (string, bool) {
	m.mu.RLock()
	p, ok := m.exported[key]
	m.mu.RUnlock()
	return p, ok
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	count := len(m.exported)
	m.mu.RUnlock()
	return Snapshot{Exported: count}
}

func (m *MemoryTracker) Close() error {
	return nil
}

// FileTracker persists exported message keys so future runs can skip them.
type FileTracker struct {
	*MemoryTracker
	path    string
	persist bool
	writer  *bufio.Writer
	file    *os.File
	writeMu sync.Mutex
}

type fileRecord struct {
	Key          string `json:"key"`
	DocumentPath string `json:"document_path"`
}

func NewFileTracker(stateDir string, persist bool) (*FileTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	tracker := &FileTracker{
		MemoryTracker: NewMemoryTracker(),
		path:          filepath.Join(stateDir, "exported.jsonl"),
		persist:       persist,
	}

	if err := tracker.load(); err != nil {
		return nil, err
	}

	if persist {
		file, err := os.OpenFile(tracker.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open state file for append: %w", err)
		}
		tracker.file = file
		tracker.writer = bufio.NewWriterSize(file, 64*1024)
	}

	return tracker, nil
}

func (f *FileTracker) load() error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var record fileRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return fmt.Errorf("parse state line %d: %w", line, err)
		}
		if record.Key == "" {
			continue
		}

		f.mu.Lock()
		f.exported[record.Key] = record.DocumentPath
		f.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read state file: %w", err)
	}

	return nil
}

// MarkExported records key; re-exports overwrite the stored path.
func (f *FileTracker) MarkExported(key, documentPath string) error {
	if key == "" {
		return nil
	}

	f.mu.Lock()
	if prev, exists := f.exported[key]; exists && prev == documentPath {
		f.mu.Unlock()
		return nil
	}
	f.exported[key] = documentPath
	f.mu.Unlock()

	if !f.persist {
		return nil
	}

	data, err := json.Marshal(fileRecord{Key: key, DocumentPath: documentPath})
	if err != nil {
		return fmt.Errorf("encode state record: %w", err)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("write state record: %w", err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	return nil
}

// Flush writes any buffered data to the underlying file.
func (f *FileTracker) Flush() error {
	if !f.persist || f.writer == nil {
		return nil
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush state file: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("sync state file: %w", err)
	}
	return nil
}

// Close flushes and closes the state file.
func (f *FileTracker) Close() error {
	if !f.persist || f.file == nil {
		return nil
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	var firstErr error
	if f.writer != nil {
		if err := f.writer.Flush(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush state file: %w", err)
		}
	}
	if err := f.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync state file: %w", err)
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close state file: %w", err)
	}
	f.file = nil

	return firstErr
}
