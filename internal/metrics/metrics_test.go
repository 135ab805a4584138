package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schwers/blueprints/internal/models"
)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRecorder_RecordRound(t *testing.T) {
	r := NewRecorder()

	r.RecordRound(models.RoundResult{
		Round: 1,
		Artifacts: []models.ArtifactReport{
			{Name: "a.test", State: models.StatePassedCached},
			{Name: "b.test", State: models.StateFailedPendingRetry},
			{Name: "c.test", State: models.StateSkipped},
			{Name: "d.test", State: models.StateSkipped},
		},
		Staged:    2,
		Unmatched: 1,
		Duration:  300 * time.Millisecond,
	})
	r.RecordBuildFailure()

	body := scrape(t, r)
	assert.Contains(t, body, "blueprints_rounds_total 1")
	assert.Contains(t, body, `blueprints_artifacts_total{state="passed"} 1`)
	assert.Contains(t, body, `blueprints_artifacts_total{state="failed"} 1`)
	assert.Contains(t, body, `blueprints_artifacts_total{state="skipped"} 2`)
	assert.Contains(t, body, "blueprints_unmatched_outcomes_total 1")
	assert.Contains(t, body, "blueprints_build_failures_total 1")
	assert.Contains(t, body, "blueprints_last_round_staged 2")
	assert.Contains(t, body, "blueprints_round_duration_seconds_count 1")
}

func TestRecorder_Independent(t *testing.T) {
	first := NewRecorder()
	second := NewRecorder()

	first.RecordBuildFailure()

	assert.Contains(t, scrape(t, first), "blueprints_build_failures_total 1")
	assert.Contains(t, scrape(t, second), "blueprints_build_failures_total 0")
}

func TestRecorder_ServeStopsWithContext(t *testing.T) {
	r := NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Serve(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func TestRecorder_ServeBadAddress(t *testing.T) {
	err := NewRecorder().Serve(context.Background(), "not-an-address")
	assert.Error(t, err)
}
