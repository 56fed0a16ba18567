package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	index := `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>RAVENNA SDK:
  Main Page</title></head><body></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "search"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "search", "search.js"), []byte("var x;"), 0o644))

	s, err := Summarize(dir)
	require.NoError(t, err)
	assert.True(t, s.Present)
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, int64(len(index)+len("var x;")), s.Bytes)
	assert.Equal(t, "RAVENNA SDK: Main Page", s.Title)
}

func TestSummarizeMissingDirectory(t *testing.T) {
	s, err := Summarize(filepath.Join(t.TempDir(), "html"))
	require.NoError(t, err)
	assert.False(t, s.Present)
	assert.Zero(t, s.Files)
}

func TestSummarizeWithoutIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "files.html"), []byte("<html></html>"), 0o644))

	s, err := Summarize(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Files)
	assert.Empty(t, s.Title)
}

func TestSummarizeFileInsteadOfDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "html")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Summarize(path)
	require.Error(t, err)
}
