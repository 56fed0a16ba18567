package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "PROJECT_NUMBER=1.0\nDOCGEN_TEST_SHARED=from-env\n# comment\nQUOTED=\"a b\"\n")
	writeFile(t, filepath.Join(dir, ".env.local"), "DOCGEN_TEST_SHARED=from-local\n")
	t.Setenv("PROJECT_NUMBER", "from-process")

	env, err := LoadDotEnv(dir)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"DOCGEN_TEST_SHARED": "from-local",
		"QUOTED":             "a b",
	}, env)
}

func TestLoadDotEnvMissingFiles(t *testing.T) {
	env, err := LoadDotEnv(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, env)
}
