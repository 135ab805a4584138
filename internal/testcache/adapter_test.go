package testcache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schwers/blueprints/internal/models"
)

func stageFor(t *testing.T, dir, name, content string, buster *CacheBuster) models.StagedArtifact {
	t.Helper()
	src := writeArtifact(t, dir, name, content)
	digest := HashBytes([]byte(content))
	dest := buster.StagedPath(src, digest)
	_, err := NewFileStager().Stage(context.Background(), src, dest)
	require.NoError(t, err)
	return models.StagedArtifact{
		Asset:      models.Asset{Name: name, Size: int64(len(content))},
		Digest:     digest,
		SourcePath: src,
		StagedPath: dest,
	}
}

func TestAdapter_RecordsOutcomesByDigest(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	buster := NewCacheBuster(store)

	pass := stageFor(t, dir, "pass.test", "pass-bytes", buster)
	fail := stageFor(t, dir, "fail.test", "fail-bytes", buster)

	runner := newFakeRunner()
	runner.setPassing("pass.test", true)

	result, err := NewAdapter(runner.factory(), store, nil).Run(context.Background(), []models.StagedArtifact{pass, fail})
	require.NoError(t, err)

	require.Len(t, result.Recorded, 2)
	assert.Empty(t, result.Unmatched)
	assert.Equal(t, pass.Digest, result.Recorded[0].Digest)
	assert.True(t, result.Recorded[0].Outcome.Passed)
	assert.Equal(t, fail.Digest, result.Recorded[1].Digest)
	assert.False(t, result.Recorded[1].Outcome.Passed)

	assert.False(t, store.NeedsExecution(pass.Digest))
	assert.True(t, store.NeedsExecution(fail.Digest))
	assert.True(t, store.HasRunBefore(fail.Digest))

	runs := runner.runs()
	require.Len(t, runs, 1, "one framework run per round")
	assert.Equal(t, []string{pass.StagedPath, fail.StagedPath}, runs[0])
}

func TestAdapter_DropsUnparseableOutcomes(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	staged := stageFor(t, dir, "pkg.test", "bytes", NewCacheBuster(store))

	runner := newFakeRunner()
	runner.setPassing("pkg.test", true)
	runner.rewrite = func(path string) string {
		return filepath.Join(filepath.Dir(path), "renamed-by-framework.test")
	}

	logger := &recordingLogger{}
	result, err := NewAdapter(runner.factory(), store, logger).Run(context.Background(), []models.StagedArtifact{staged})
	require.NoError(t, err)

	assert.Empty(t, result.Recorded)
	assert.Len(t, result.Unmatched, 1)
	assert.Equal(t, 1, logger.warningCount(), "dropped outcome is logged")
	assert.False(t, store.HasRunBefore(staged.Digest), "no outcome recorded, artifact runs again next round")
}

func TestAdapter_PartialRunRecordsWhatFinished(t *testing.T) {
	dir := t.TempDir()
	store := NewMemoryStore()
	buster := NewCacheBuster(store)
	first := stageFor(t, dir, "a.test", "a", buster)
	second := stageFor(t, dir, "b.test", "b", buster)

	runner := newFakeRunner()
	runner.setPassing("a.test", true)
	runner.setPassing("b.test", true)
	runner.stopAfter = 1
	runner.runErr = context.Canceled

	result, err := NewAdapter(runner.factory(), store, nil).Run(context.Background(), []models.StagedArtifact{first, second})
	assert.True(t, errors.Is(err, context.Canceled))
	require.Len(t, result.Recorded, 1)
	assert.False(t, store.NeedsExecution(first.Digest))
	assert.True(t, store.NeedsExecution(second.Digest))
}

func TestAdapter_NothingStaged(t *testing.T) {
	runner := newFakeRunner()
	result, err := NewAdapter(runner.factory(), NewMemoryStore(), nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Recorded)
	assert.Empty(t, runner.runs(), "no framework is created for an empty round")
}

func TestNewAdapter_NilFactoryPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewAdapter(nil, NewMemoryStore(), nil)
	})
}
