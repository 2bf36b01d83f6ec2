// Package manifest records what one export run produced.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/saadiq/gmail-to-md/sanitize"
	"github.com/saadiq/gmail-to-md/sink"
)

const FileName = "manifest.yaml"

type Counts struct {
	Listed          int `yaml:"listed"`
	Exported        int `yaml:"exported"`
	AlreadyExported int `yaml:"already_exported"`
	Filtered        int `yaml:"filtered"`
	Failed          int `yaml:"failed"`
	Binaries        int `yaml:"binaries"`
}

type Manifest struct {
	RunID      string    `yaml:"run_id"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at"`
	Source     string    `yaml:"source"`
	Query      string    `yaml:"query,omitempty"`
	DryRun     bool      `yaml:"dry_run,omitempty"`
	Counts     Counts    `yaml:"counts"`
	// Documents are relative to the folder holding the manifest.
	Documents []string `yaml:"documents"`
}

func New(source, query string) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Source:    source,
		Query:     query,
	}
}

// Write stores the manifest in dir, next to the exported documents, without
// replacing the manifest of an earlier run.
func (m *Manifest) Write(s sink.Sink, dir string) (string, error) {
	if m.FinishedAt.IsZero() {
		m.FinishedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	path := sanitize.UniquePath(filepath.Join(dir, FileName), s.Exists)
	if err := s.WriteBytes(path, data); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// Load reads a manifest written by Write.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Decode(data)
}

func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
