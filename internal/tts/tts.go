package tts

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"elaine/pkg/audioconv"
)

// Synthesizer turns text into a decoded waveform.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audioconv.Clip, error)
}

// Service wraps a Synthesizer with the shared synthesis policy: empty
// text never reaches the backend, backend failures degrade to an empty
// clip, and successful output is archived to a timestamped wav file.
type Service struct {
	backend   Synthesizer
	outputDir string
	log       *slog.Logger
}

func NewService(backend Synthesizer, outputDir string) *Service {
	return &Service{
		backend:   backend,
		outputDir: outputDir,
		log:       slog.Default().With("component", "tts"),
	}
}

// Render synthesizes text. The returned clip is empty when there is
// nothing to say or the backend failed; the caller treats that as
// "no audio produced", not as an error.
func (s *Service) Render(ctx context.Context, text string) audioconv.Clip {
	if strings.TrimSpace(text) == "" {
		return audioconv.Clip{}
	}

	clip, err := s.backend.Synthesize(ctx, text)
	if err != nil {
		s.log.Error("synthesis failed", "err", err)
		return audioconv.Clip{}
	}
	if clip.Empty() {
		s.log.Warn("synthesis produced no audio")
		return audioconv.Clip{}
	}

	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
			s.log.Error("create output dir", "err", err)
		} else {
			path := filepath.Join(s.outputDir, "tts_"+time.Now().Format("20060102T150405")+".wav")
			if err := audioconv.WriteWAV(path, clip.Samples, clip.Rate); err != nil {
				s.log.Error("archive waveform", "err", err)
			}
		}
	}
	return clip
}
