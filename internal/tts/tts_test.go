package tts

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elaine/pkg/audioconv"
)

type fakeSynth struct {
	calls int
	clip  audioconv.Clip
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (audioconv.Clip, error) {
	f.calls++
	return f.clip, f.err
}

func TestRenderEmptyTextSkipsBackend(t *testing.T) {
	backend := &fakeSynth{clip: audioconv.Clip{Samples: []float32{0.1}, Rate: 16000}}
	svc := NewService(backend, "")

	clip := svc.Render(context.Background(), "   ")
	assert.True(t, clip.Empty())
	assert.Equal(t, 0, backend.calls)
}

func TestRenderBackendErrorYieldsEmptyClip(t *testing.T) {
	backend := &fakeSynth{err: errors.New("server down")}
	svc := NewService(backend, "")

	clip := svc.Render(context.Background(), "Привет")
	assert.True(t, clip.Empty())
	assert.Equal(t, 1, backend.calls)
}

func TestRenderArchivesOutput(t *testing.T) {
	dir := t.TempDir()
	backend := &fakeSynth{clip: audioconv.Clip{Samples: make([]float32, 16000), Rate: 16000}}
	svc := NewService(backend, dir)

	clip := svc.Render(context.Background(), "Привет")
	require.False(t, clip.Empty())
	assert.Equal(t, 16000, clip.Rate)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "tts_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".wav"))
}

func TestRenderNoArchiveWithoutOutputDir(t *testing.T) {
	backend := &fakeSynth{clip: audioconv.Clip{Samples: []float32{0.1, 0.2}, Rate: 16000}}
	svc := NewService(backend, "")

	clip := svc.Render(context.Background(), "Привет")
	assert.False(t, clip.Empty())
}
