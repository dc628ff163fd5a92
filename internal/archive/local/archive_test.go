package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "snapshots")
	_, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestPutWritesFile(t *testing.T) {
	base := t.TempDir()
	a, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	uri, err := a.Put(context.Background(), "src/2026-02-01/abc.html", "text/html", []byte("<html>"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(base, "src", "2026-02-01", "abc.html"))
	require.NoError(t, err)
	assert.Equal(t, []byte("<html>"), data)
}

func TestPutRejectsTraversal(t *testing.T) {
	a, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = a.Put(context.Background(), "../escape.html", "", []byte("x"))
	assert.Error(t, err)
}
