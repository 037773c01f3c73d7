package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elaine/pkg/audioconv"
)

func TestXTTSSynthesize(t *testing.T) {
	wavPath := filepath.Join(t.TempDir(), "reply.wav")
	require.NoError(t, audioconv.WriteWAV(wavPath, make([]float32, 24000), 24000))
	wavBytes, err := os.ReadFile(wavPath)
	require.NoError(t, err)

	var got xttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(wavBytes)
	}))
	defer srv.Close()

	x := NewXTTS(srv.URL, "ru", "speaker.wav")
	clip, err := x.Synthesize(context.Background(), "Привет, Ваня!")
	require.NoError(t, err)

	assert.Equal(t, "Привет, Ваня!", got.Text)
	assert.Equal(t, "ru", got.Language)
	assert.Equal(t, "speaker.wav", got.SpeakerWav)
	assert.Equal(t, 24000, clip.Rate)
	assert.Equal(t, 24000, len(clip.Samples))
}

func TestXTTSServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	x := NewXTTS(srv.URL, "ru", "")
	_, err := x.Synthesize(context.Background(), "Привет")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestXTTSBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a wav"))
	}))
	defer srv.Close()

	x := NewXTTS(srv.URL, "ru", "")
	_, err := x.Synthesize(context.Background(), "Привет")
	require.Error(t, err)
}
