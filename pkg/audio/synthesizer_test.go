package audio_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/audio"
	"github.com/dukex/ivrflow/pkg/log"
	"github.com/dukex/ivrflow/pkg/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOpenAISynthesizer(t *testing.T) {
	t.Parallel()

	t.Run("posts the speech request", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/audio/speech", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "tts-1-hd", body["model"])
			assert.Equal(t, "Welcome", body["input"])
			assert.Equal(t, audio.DefaultVoice, body["voice"])
			assert.Equal(t, "mp3", body["response_format"])

			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3data"))
		}))
		defer server.Close()

		synthesizer := audio.NewOpenAISynthesizer("secret",
			audio.WithBaseURL(server.URL+"/v1"),
			audio.WithModel("tts-1-hd"),
			audio.WithHTTPClient(server.Client()),
		)

		clip, err := synthesizer.Synthesize(context.Background(), audio.SynthesisRequest{Text: "Welcome"})
		require.NoError(t, err)
		assert.Equal(t, []byte("ID3data"), clip.Data)
		assert.Equal(t, "audio/mpeg", clip.ContentType)
		assert.Equal(t, ".mp3", clip.Extension)
	})

	tests := []struct {
		name      string
		status    int
		temporary bool
	}{
		{name: "server error is temporary", status: http.StatusBadGateway, temporary: true},
		{name: "rate limit is temporary", status: http.StatusTooManyRequests, temporary: true},
		{name: "bad request is permanent", status: http.StatusBadRequest, temporary: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			synthesizer := audio.NewOpenAISynthesizer("", audio.WithBaseURL(server.URL))

			_, err := synthesizer.Synthesize(context.Background(), audio.SynthesisRequest{Text: "Hi", Voice: "nova"})
			require.Error(t, err)

			var synthErr *audio.SynthesisError
			require.True(t, errors.As(err, &synthErr))
			assert.Equal(t, tt.status, synthErr.StatusCode)
			assert.Equal(t, tt.temporary, audio.IsTemporary(err))
		})
	}

	t.Run("empty text", func(t *testing.T) {
		t.Parallel()

		_, err := audio.NewOpenAISynthesizer("").Synthesize(context.Background(), audio.SynthesisRequest{})
		assert.ErrorIs(t, err, audio.ErrEmptyText)
	})
}

func TestIsTemporary_DeadlineExceeded(t *testing.T) {
	t.Parallel()

	assert.True(t, audio.IsTemporary(context.DeadlineExceeded))
	assert.False(t, audio.IsTemporary(context.Canceled))
}

func TestLocalStorage(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "assets")
	storage, err := audio.NewLocalStorage(dir, "https://ivr.example.com/assets/")
	require.NoError(t, err)

	asset, err := storage.Put(context.Background(), &audio.Clip{Data: []byte("ID3"), Extension: ".mp3"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(asset.ID, ".mp3"))
	assert.Equal(t, "https://ivr.example.com/assets/"+asset.ID, asset.URL)

	data, err := os.ReadFile(filepath.Join(dir, asset.ID))
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), data)

	require.NoError(t, storage.Delete(context.Background(), asset.ID))
	assert.ErrorIs(t, storage.Delete(context.Background(), asset.ID), audio.ErrAssetNotFound)
	assert.ErrorIs(t, storage.Delete(context.Background(), "../etc/passwd"), audio.ErrAssetNotFound)
}

func TestInlineRenderer_CachesRenderedText(t *testing.T) {
	t.Parallel()

	synthesizer := &fakeSynthesizer{}
	storage := newMemoryStorage()
	renderer := audio.NewInlineRenderer(synthesizer, storage, log.Discard())

	first, err := renderer.Render(context.Background(), "Hello Ada", "alloy", "en-US")
	require.NoError(t, err)

	second, err := renderer.Render(context.Background(), "Hello Ada", "alloy", "en-US")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := renderer.Render(context.Background(), "Hello Ada", "nova", "en-US")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	assert.Equal(t, int32(2), synthesizer.calls.Load())
	assert.Equal(t, 2, storage.count())
}

func TestInlineRenderer_DeletesEvictedAssets(t *testing.T) {
	t.Parallel()

	synthesizer := &fakeSynthesizer{}
	storage := newMemoryStorage()
	renderer := audio.NewInlineRenderer(synthesizer, storage, log.Discard(), audio.WithCacheSize(1))

	first, err := renderer.Render(context.Background(), "Hello Ada", "", "")
	require.NoError(t, err)

	_, err = renderer.Render(context.Background(), "Hello Grace", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, storage.count())
	assert.Equal(t, int32(2), synthesizer.calls.Load())

	again, err := renderer.Render(context.Background(), "Hello Ada", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first, again)
	assert.Equal(t, int32(3), synthesizer.calls.Load())
	assert.Equal(t, 1, storage.count())
}

func TestInlineRenderer_SharedRenderSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	synthesizer := &fakeSynthesizer{
		respond: func(ctx context.Context, _ int, _ audio.SynthesisRequest) (*audio.Clip, error) {
			select {
			case <-release:
				return clip(), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	renderer := audio.NewInlineRenderer(synthesizer, newMemoryStorage(), log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	url, err := renderer.Render(ctx, "Hello Ada", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestInlineRenderer_ReturnsSynthesisErrors(t *testing.T) {
	t.Parallel()

	synthesizer := &mocks.MockSynthesizer{}
	synthesizer.On("Synthesize", mock.Anything, mock.MatchedBy(func(req audio.SynthesisRequest) bool {
		return req.Text == "Hello"
	})).Return(nil, temporary()).Once()

	renderer := audio.NewInlineRenderer(synthesizer, newMemoryStorage(), log.Discard(), audio.WithCacheSize(1))

	url, err := renderer.Render(context.Background(), "Hello", "", "")
	require.Error(t, err)
	assert.Empty(t, url)
	synthesizer.AssertExpectations(t)
}
