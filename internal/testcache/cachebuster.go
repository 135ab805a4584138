package testcache

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
)

// stagedSuffix matches "-<digest>" optionally followed by "-<counter>" at the
// end of a staged name. A counter is a uint64, so it never reaches the
// 32 characters of a digest and the two cannot be confused.
var stagedSuffix = regexp.MustCompile(`-([0-9a-f]{32})(?:-([0-9]{1,20}))?$`)

// CacheBuster names staged copies of artifacts. A digest that has never been
// recorded gets a stable name. A digest with a recorded outcome gets a new
// name on every staging, so the execution framework cannot serve a report it
// cached for an earlier file of the same name.
type CacheBuster struct {
	store   Store
	counter atomic.Uint64
}

// NewCacheBuster creates a CacheBuster consulting store for prior outcomes.
func NewCacheBuster(store Store) *CacheBuster {
	return &CacheBuster{store: store}
}

// StagedPath returns the staged path for an artifact at original with the given digest.
func (b *CacheBuster) StagedPath(original, digest string) string {
	staged := original + "-" + digest
	if b.store.HasRunBefore(digest) {
		staged += "-" + strconv.FormatUint(b.counter.Add(1), 10)
	}
	return staged
}

// ParseStagedPath recovers the digest from a path produced by StagedPath.
// It returns ErrDigestNotFound when the path has no digest suffix.
func ParseStagedPath(path string) (string, error) {
	match := stagedSuffix.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return "", fmt.Errorf("%s: %w", path, ErrDigestNotFound)
	}
	return match[1], nil
}

// IsStaged reports whether a file name is a staged copy of an artifact with
// extension ext: "<name><ext>-<digest>" with an optional "-<counter>".
// Primary outputs that merely contain "<ext>-" are not staged.
func IsStaged(name, ext string) bool {
	base := filepath.Base(name)
	loc := stagedSuffix.FindStringIndex(base)
	if loc == nil {
		return false
	}
	return strings.HasSuffix(base[:loc[0]], ext)
}
