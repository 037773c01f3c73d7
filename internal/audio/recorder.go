package audio

import (
	"context"
	"errors"
	"time"

	"github.com/gordonklaus/portaudio"

	"elaine/pkg/audioconv"
)

var (
	// ErrNoVoice means no probe window crossed the threshold before the timeout.
	ErrNoVoice = errors.New("no voice detected")
	// ErrTooQuiet means the full recording fell back under the threshold
	// after a detection, so it is treated as false-positive noise.
	ErrTooQuiet = errors.New("recording too quiet")
)

// RecorderConfig tunes voice-activity detection and capture.
type RecorderConfig struct {
	SampleRate   int
	Threshold    float64 // normalized peak amplitude
	ProbeWindow  time.Duration
	WaitTimeout  time.Duration
	RecordWindow time.Duration
}

type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.ProbeWindow <= 0 {
		cfg.ProbeWindow = 500 * time.Millisecond
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 10 * time.Second
	}
	if cfg.RecordWindow <= 0 {
		cfg.RecordWindow = 3500 * time.Millisecond
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) samplesFor(d time.Duration) int {
	return int(float64(r.cfg.SampleRate) * d.Seconds())
}

// WaitForVoice polls probe windows until one's peak amplitude exceeds the
// threshold. Returns ErrNoVoice when the wall-clock timeout elapses first.
func (r *Recorder) WaitForVoice(ctx context.Context) error {
	buf := make([]float32, r.samplesFor(r.cfg.ProbeWindow))

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	deadline := time.Now().Add(r.cfg.WaitTimeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(); err != nil {
			return err
		}
		if float64(audioconv.Peak(buf)) > r.cfg.Threshold {
			return nil
		}
	}
	return ErrNoVoice
}

// Record captures a fixed-length window and returns its samples.
func (r *Recorder) Record(ctx context.Context, dur time.Duration) ([]float32, error) {
	const frameSize = 1024

	buf := make([]float32, frameSize)
	out := make([]float32, 0, r.samplesFor(dur))

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	want := r.samplesFor(dur)
	for len(out) < want {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	return out[:want], nil
}

// Capture waits for speech, records the full window and validates it.
// A detection whose full recording stays under the threshold is
// discarded as noise.
func (r *Recorder) Capture(ctx context.Context) ([]float32, error) {
	if err := r.WaitForVoice(ctx); err != nil {
		return nil, err
	}
	out, err := r.Record(ctx, r.cfg.RecordWindow)
	if err != nil {
		return nil, err
	}
	if float64(audioconv.Peak(out)) < r.cfg.Threshold {
		return nil, ErrTooQuiet
	}
	return out, nil
}
