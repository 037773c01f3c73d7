package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecorderConfigDefaults(t *testing.T) {
	r := NewRecorder(RecorderConfig{})
	assert.Equal(t, 16000, r.cfg.SampleRate)
	assert.Equal(t, 500*time.Millisecond, r.cfg.ProbeWindow)
	assert.Equal(t, 10*time.Second, r.cfg.WaitTimeout)
	assert.Equal(t, 3500*time.Millisecond, r.cfg.RecordWindow)
}

func TestSamplesFor(t *testing.T) {
	r := NewRecorder(RecorderConfig{SampleRate: 16000})
	assert.Equal(t, 8000, r.samplesFor(500*time.Millisecond))
	assert.Equal(t, 56000, r.samplesFor(3500*time.Millisecond))
	assert.Equal(t, 0, r.samplesFor(0))
}
