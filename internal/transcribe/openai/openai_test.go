package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caji-assist/replymode/internal/config"
	"github.com/caji-assist/replymode/internal/transcribe"
)

func newTestTranscriber(t *testing.T, handler http.HandlerFunc) *Transcriber {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr := New(config.OpenAIConfig{APIKey: "sk-test", Language: "pt", Prompt: "WhatsApp"})
	tr.url = srv.URL
	return tr
}

func TestTranscribeMultipartRequest(t *testing.T) {
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "pt", r.FormValue("language"))
		assert.Equal(t, "WhatsApp", r.FormValue("prompt"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "audio.ogg", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "OggS", string(data))

		_, _ = io.WriteString(w, `{"text":"pode falar"}`)
	})

	text, err := tr.Transcribe(context.Background(), []byte("OggS"), "audio/ogg; codecs=opus", transcribe.Opts{})
	require.NoError(t, err)
	assert.Equal(t, "pode falar", text)
}

func TestTranscribeRateLimited(t *testing.T) {
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := tr.Transcribe(context.Background(), []byte{1}, "audio/ogg", transcribe.Opts{})
	assert.ErrorIs(t, err, transcribe.ErrQuotaExceeded)
}

func TestTranscribeServerError(t *testing.T) {
	tr := newTestTranscriber(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := tr.Transcribe(context.Background(), []byte{1}, "audio/ogg", transcribe.Opts{})
	assert.ErrorContains(t, err, "status 500")
}

func TestTranscribeWithoutKey(t *testing.T) {
	tr := New(config.OpenAIConfig{})
	_, err := tr.Transcribe(context.Background(), []byte{1}, "audio/ogg", transcribe.Opts{})
	assert.ErrorIs(t, err, transcribe.ErrMissingAPIKey)
}

func TestExtFromContentType(t *testing.T) {
	assert.Equal(t, ".ogg", extFromContentType("audio/ogg; codecs=opus"))
	assert.Equal(t, ".mp3", extFromContentType("audio/mpeg"))
	assert.Equal(t, ".m4a", extFromContentType("audio/mp4"))
	assert.Equal(t, ".wav", extFromContentType("audio/wav"))
}
