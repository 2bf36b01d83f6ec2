package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSWritesAndCreatesParents(t *testing.T) {
	dir := t.TempDir()
	fs := NewFS()

	target := filepath.Join(dir, "a", "b", "doc.md")
	assert.False(t, fs.Exists(target))

	require.NoError(t, fs.WriteText(target, "hello"))
	assert.True(t, fs.Exists(target))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, fs.WriteText(target, "rewritten"))
	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", string(data))
}

func TestFSRejectsEmptyPath(t *testing.T) {
	err := NewFS().WriteBytes(" ", []byte("x"))
	assert.True(t, errors.Is(err, ErrEmptyPath))
}

func TestFSWriteFailureIsWrapped(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewFS().WriteBytes(filepath.Join(blocker, "child.bin"), []byte("y"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create directory")
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.WriteBytes("out/x/../img.png", []byte{1, 2}))
	assert.True(t, m.Exists("out/img.png"))

	data, ok := m.Read("out/img.png")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, data)

	m.FailOn = func(p string) bool { return filepath.Ext(p) == ".pdf" }
	assert.Error(t, m.WriteBytes("out/doc.pdf", nil))
	assert.False(t, m.Exists("out/doc.pdf"))

	require.NoError(t, m.WriteText("out/a.md", "a"))
	assert.Equal(t, []string{"out/a.md", "out/img.png"}, m.Paths())
}
