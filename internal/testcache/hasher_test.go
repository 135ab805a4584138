package testcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0755))
	return path
}

func TestHasher_Hash(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "pkg.test", "binary-v1")

	h := NewHasher()
	digest, err := h.Hash(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, digest, DigestLength)
	assert.Equal(t, strings.ToLower(digest), digest)
	assert.NotContains(t, digest, "-")
	assert.Equal(t, HashBytes([]byte("binary-v1")), digest)
}

func TestHasher_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := writeArtifact(t, dir, "a.test", "same bytes")
	b := writeArtifact(t, dir, "nested/b.test", "same bytes")
	c := writeArtifact(t, dir, "c.test", "other bytes")

	h := NewHasher()
	da, err := h.Hash(context.Background(), a)
	require.NoError(t, err)
	db, err := h.Hash(context.Background(), b)
	require.NoError(t, err)
	dc, err := h.Hash(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, da, db, "identity is content, not path")
	assert.NotEqual(t, da, dc)
}

func TestHasher_MissingFile(t *testing.T) {
	h := NewHasher()
	_, err := h.Hash(context.Background(), filepath.Join(t.TempDir(), "missing.test"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "expected wrapped ErrNotExist, got %v", err)
	assert.Contains(t, err.Error(), "failed to hash")
}

func TestHasher_CanceledContext(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "pkg.test", "data")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHasher().Hash(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHasher_Concurrent(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "pkg.test", "concurrent")
	want := HashBytes([]byte("concurrent"))

	h := NewHasher()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := h.Hash(context.Background(), path)
			if err != nil {
				t.Errorf("Hash failed: %v", err)
				return
			}
			if got != want {
				t.Errorf("expected %s, got %s", want, got)
			}
		}()
	}
	wg.Wait()
}
