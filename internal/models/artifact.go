package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBuildFailed indicates the build pass reported errors; no round runs for it.
var ErrBuildFailed = errors.New("build failed")

// Asset is one output file reported by the build pipeline after a build pass.
type Asset struct {
	Name string `json:"name"` // Path relative to the output directory
	Size int64  `json:"size"` // Size in bytes
}

// BuildStats is the post-build notification payload.
type BuildStats struct {
	Assets   []Asset       `json:"assets"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HasErrors reports whether the build pass failed.
func (s BuildStats) HasErrors() bool {
	return len(s.Errors) > 0
}

// Err returns nil for a successful build, otherwise an error wrapping ErrBuildFailed.
func (s BuildStats) Err() error {
	if !s.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrBuildFailed, strings.Join(s.Errors, "; "))
}

// StagedArtifact is an artifact copied to its cache-busted path for one round.
type StagedArtifact struct {
	Asset      Asset
	Digest     string
	SourcePath string
	StagedPath string
}

// ArtifactState tracks an artifact through a round.
type ArtifactState string

// Artifact states. FailedPendingRetry re-enters Staged on the next round under
// a new name; PassedCached becomes Skipped while the digest is unchanged.
const (
	StateUntested           ArtifactState = "untested"
	StateStaged             ArtifactState = "staged"
	StateRunning            ArtifactState = "running"
	StatePassedCached       ArtifactState = "passed"
	StateFailedPendingRetry ArtifactState = "failed"
	StateSkipped            ArtifactState = "skipped"
	StateErrored            ArtifactState = "errored"
)

// IsTerminal reports whether the state ends an artifact's participation in a round.
func (s ArtifactState) IsTerminal() bool {
	switch s {
	case StatePassedCached, StateFailedPendingRetry, StateSkipped, StateErrored:
		return true
	default:
		return false
	}
}
