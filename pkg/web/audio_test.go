package web_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/ivrflow/pkg/audio"
	"github.com/dukex/ivrflow/pkg/models"
	"github.com/dukex/ivrflow/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudio_JobLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.save(t, menuWorkflow())

	resp, body := f.do(t, http.MethodPost, "/workflows/wf-main/audio/jobs", map[string]any{
		"nodeIds": []string{"welcome", "menu"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	job := decode[models.AudioJob](t, body)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, []string{"welcome", "menu"}, job.NodeIDs)

	f.pipeline.Wait()

	resp, body = f.do(t, http.MethodGet, "/audio/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	finished := decode[models.AudioJob](t, body)
	assert.Equal(t, models.AudioJobCompleted, finished.Status)
	assert.Equal(t, 2, finished.ProcessedNodes)

	resp, body = f.do(t, http.MethodGet, "/workflows/wf-main/audio/jobs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.AudioJob](t, body), 1)

	resp, body = f.do(t, http.MethodDelete, "/audio/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	resp, body = f.do(t, http.MethodGet, "/workflows/wf-main", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	workflow := decode[models.Workflow](t, body)
	welcome, ok := workflow.NodeByID("welcome")
	require.True(t, ok)
	assert.Equal(t, models.AudioStatusReady, welcome.AudioStatus)
	require.NotEmpty(t, welcome.AudioAssetID)

	resp, body = f.do(t, http.MethodGet, "/assets/"+welcome.AudioAssetID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ID3Welcome to Acme.", string(body))
}

func TestAudio_NotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		target string
		kind   string
	}{
		{"enqueue for unknown workflow", http.MethodPost, "/workflows/ghost/audio/jobs", "workflow_not_found"},
		{"unknown job", http.MethodGet, "/audio/jobs/ghost", "audio_job_not_found"},
		{"cancel unknown job", http.MethodDelete, "/audio/jobs/ghost", "audio_job_not_found"},
		{"hidden asset", http.MethodGet, "/assets/.hidden", "asset_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.target, nil)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, tt.kind, decode[problem](t, body).Type)
		})
	}
}

func TestAudio_GenerateNow(t *testing.T) {
	t.Parallel()

	t.Run("generates every prompt", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.save(t, menuWorkflow())

		resp, body := f.do(t, http.MethodPost, "/workflows/wf-main/audio/generate", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		result := decode[web.GenerateResponse](t, body)
		assert.ElementsMatch(t, []string{"welcome", "menu", "bye"}, result.Report.Generated)
		assert.Empty(t, result.Failures)

		entries, err := os.ReadDir(f.assetsDir)
		require.NoError(t, err)
		assert.Len(t, entries, 3)

		for _, entry := range entries {
			assert.Equal(t, ".mp3", filepath.Ext(entry.Name()))
		}
	})

	t.Run("reports failed nodes", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.save(t, menuWorkflow())
		f.synthesizer.fail.Store(true)

		resp, body := f.do(t, http.MethodPost, "/workflows/wf-main/audio/generate", nil)
		require.Equal(t, http.StatusMultiStatus, resp.StatusCode, string(body))

		result := decode[web.GenerateResponse](t, body)
		assert.Len(t, result.Failures, 3)
		assert.ElementsMatch(t, []string{"welcome", "menu", "bye"}, result.Report.Degraded)
	})

	t.Run("rejects a bad force flag", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		resp, _ := f.do(t, http.MethodPost, "/workflows/wf-main/audio/generate?force=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		resp, _ := f.do(t, http.MethodPost, "/workflows/ghost/audio/generate", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

var _ web.AudioPipeline = (*audio.Pipeline)(nil)
