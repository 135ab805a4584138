// Package testcache decides which compiled test artifacts must run after a
// build pass. Artifacts are identified by a digest of their content, outcomes
// are remembered per digest for the life of a session, and artifacts are
// staged under cache-busted names so the execution framework never returns
// a stale report for a file name it has seen before.
package testcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DigestLength is the number of hex characters in a content digest.
const DigestLength = 32

// ContentHasher derives a content digest for an artifact on disk.
type ContentHasher interface {
	Hash(ctx context.Context, path string) (string, error)
}

// Hasher computes digests from the first 16 bytes of the sha256 of a file.
// It holds no state and is safe for concurrent use.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash streams the file at path through sha256 and returns its digest.
func (h *Hasher) Hash(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	defer file.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return encodeDigest(sum.Sum(nil)), nil
}

// HashBytes returns the digest of data. Hash and HashBytes agree for the same bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return encodeDigest(sum[:])
}

func encodeDigest(sum []byte) string {
	return hex.EncodeToString(sum[:DigestLength/2])
}
