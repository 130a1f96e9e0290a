package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/opaquebits/modelinspect/internal/model"
)

func TestLocalArtifactFS_HashFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))

	hash, err := NewLocalArtifactFS().HashFile(m.Path(path))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)
}

func TestLocalArtifactFS_MissingFile(t *testing.T) {
	t.Parallel()

	fs := NewLocalArtifactFS()
	missing := m.Path(filepath.Join(t.TempDir(), "absent"))

	_, err := fs.ReadFile(missing)
	assert.Error(t, err)

	_, err = fs.FileInfo(missing)
	assert.Error(t, err)

	_, err = fs.HashFile(missing)
	assert.Error(t, err)
}
