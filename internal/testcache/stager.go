package testcache

import (
	"context"

	"github.com/schwers/blueprints/internal/filelock"
)

// ArtifactStager copies an artifact to its staged path.
type ArtifactStager interface {
	Stage(ctx context.Context, src, dest string) (string, error)
}

// FileStager stages artifacts with an atomic copy that keeps the source mode.
type FileStager struct{}

// NewFileStager creates a new FileStager.
func NewFileStager() *FileStager {
	return &FileStager{}
}

// Stage copies src to dest and returns dest. Errors are returned unchanged
// from the copy so callers can exclude just this artifact from the round.
func (s *FileStager) Stage(ctx context.Context, src, dest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := filelock.AtomicCopy(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}
