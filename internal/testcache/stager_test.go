package testcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStager_Stage(t *testing.T) {
	dir := t.TempDir()
	src := writeArtifact(t, dir, "pkg.test", "compiled")
	dest := filepath.Join(dir, "pkg.test-"+digestA)

	got, err := NewFileStager().Stage(context.Background(), src, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(data))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm(), "staged copy stays executable")

	_, err = os.Stat(src)
	assert.NoError(t, err, "source is left in place")
}

func TestFileStager_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileStager().Stage(context.Background(), filepath.Join(dir, "gone.test"), filepath.Join(dir, "gone.test-"+digestA))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileStager_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	src := writeArtifact(t, dir, "pkg.test", "compiled")
	dest := filepath.Join(dir, "pkg.test-"+digestA)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileStager().Stage(ctx, src, dest)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
