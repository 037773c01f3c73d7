package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"elaine/pkg/audioconv"
)

const (
	envelopeWindow = 512 // samples per mouth-sync energy window
	envelopeRate   = 60  // mouth updates per second
	smoothing      = 0.7
)

// Player renders decoded clips through the system speaker and walks a
// volume envelope alongside playback for avatar mouth sync.
type Player struct {
	rate beep.SampleRate
	gain float64

	once    sync.Once
	initErr error
}

func NewPlayer(sampleRate int, mouthGain float64) *Player {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &Player{rate: beep.SampleRate(sampleRate), gain: mouthGain}
}

func (p *Player) init() error {
	p.once.Do(func() {
		p.initErr = speaker.Init(p.rate, p.rate.N(time.Second/10))
	})
	return p.initErr
}

// Play blocks until the clip has been played out. onFrame, when non-nil,
// receives the smoothed [0,1] volume envelope at ~60 fps and a final 0
// once playback ends.
func (p *Player) Play(ctx context.Context, clip audioconv.Clip, onFrame func(level float64)) error {
	if clip.Empty() {
		return nil
	}
	if err := p.init(); err != nil {
		return err
	}

	var st beep.Streamer = &clipStreamer{samples: clip.Samples}
	if beep.SampleRate(clip.Rate) != p.rate {
		st = beep.Resample(4, beep.SampleRate(clip.Rate), p.rate, st)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(st, beep.Callback(func() {
		close(done)
	})))

	if onFrame == nil {
		select {
		case <-done:
		case <-ctx.Done():
			speaker.Clear()
		}
		return ctx.Err()
	}

	start := time.Now()
	ticker := time.NewTicker(time.Second / envelopeRate)
	defer ticker.Stop()

	var smoothed, last float64
	for {
		select {
		case <-done:
			onFrame(0)
			return nil
		case <-ctx.Done():
			speaker.Clear()
			onFrame(0)
			return ctx.Err()
		case <-ticker.C:
			pos := int(time.Since(start).Seconds() * float64(clip.Rate))
			raw := audioconv.EnvelopeAt(clip.Samples, pos, envelopeWindow, p.gain)
			smoothed = smoothing*smoothed + (1-smoothing)*raw
			if math.Abs(smoothed-last) > 0.01 {
				onFrame(smoothed)
				last = smoothed
			}
		}
	}
}

// PlayStreamer plays an arbitrary beep streamer (the listen chime).
func (p *Player) PlayStreamer(st beep.Streamer, format beep.Format) error {
	if err := p.init(); err != nil {
		return err
	}
	if format.SampleRate != p.rate {
		st = beep.Resample(4, format.SampleRate, p.rate, st)
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(st, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// clipStreamer adapts a mono float32 buffer to a beep stereo streamer.
type clipStreamer struct {
	samples []float32
	pos     int
}

func (c *clipStreamer) Stream(out [][2]float64) (int, bool) {
	if c.pos >= len(c.samples) {
		return 0, false
	}
	n := 0
	for i := range out {
		if c.pos >= len(c.samples) {
			break
		}
		v := float64(c.samples[c.pos])
		out[i][0] = v
		out[i][1] = v
		c.pos++
		n++
	}
	return n, n > 0
}

func (c *clipStreamer) Err() error { return nil }
