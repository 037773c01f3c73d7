package stt

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"elaine/pkg/audioconv"
)

// Transcriber converts a recorded wav file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

// Filler tokens whisper likes to emit on silence, breathing and
// background noise. Removed by substring before the text reaches the
// generator.
var fillerTokens = []string{
	"редактор субтитров", "музыка", "[", "]", "♪", "applause", "noise",
	"заставка", "смех", "кашель", "речь", "переход", "звуки",
}

// CleanTranscript strips filler tokens and surrounding whitespace.
func CleanTranscript(text string) string {
	for _, tok := range fillerTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	return strings.TrimSpace(text)
}

// Service wraps a Transcriber with the shared recognition policy:
// a minimum-duration floor, filler cleanup, the backend timeout and
// temp-file ownership. Failures degrade to an empty transcript.
type Service struct {
	backend     Transcriber
	sampleRate  int
	minDuration time.Duration
	timeout     time.Duration
	tmpDir      string
	log         *slog.Logger
}

func NewService(backend Transcriber, sampleRate int, minDuration, timeout time.Duration, tmpDir string) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Service{
		backend:     backend,
		sampleRate:  sampleRate,
		minDuration: minDuration,
		timeout:     timeout,
		tmpDir:      tmpDir,
		log:         slog.Default().With("component", "stt"),
	}
}

// RecognizeSamples writes the capture to a temporary wav and recognizes
// it. Captures shorter than the floor are rejected before any file or
// backend call is made.
func (s *Service) RecognizeSamples(ctx context.Context, samples []float32, rate int) string {
	if rate <= 0 {
		rate = s.sampleRate
	}
	dur := time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second))
	if dur < s.minDuration {
		s.log.Debug("capture under duration floor", "duration", dur)
		return ""
	}

	if err := os.MkdirAll(s.tmpDir, 0o755); err != nil {
		s.log.Error("create temp dir", "err", err)
		return ""
	}
	path := filepath.Join(s.tmpDir, "rec_"+time.Now().Format("20060102T150405.000")+".wav")
	if err := audioconv.WriteWAV(path, samples, rate); err != nil {
		s.log.Error("write recording", "err", err)
		return ""
	}

	return s.Recognize(ctx, path)
}

// Recognize transcribes the wav at path. The file is deleted on every
// exit path. Backend timeouts and errors yield an empty transcript.
func (s *Service) Recognize(ctx context.Context, path string) string {
	defer os.Remove(path)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.backend.Transcribe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			s.log.Warn("recognizer timed out", "timeout", s.timeout)
		} else {
			s.log.Error("recognizer failed", "err", err)
		}
		return ""
	}
	return CleanTranscript(text)
}
