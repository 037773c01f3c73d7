package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"elaine/pkg/audioconv"
)

type Options struct {
	Language      string // e.g. "auto", "en", "ru"
	TranslateToEn bool   // if true, translate non-EN -> EN
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // optional prefix prompt
	BeamSize      int    // 0 = greedy; >0 enables beam search
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string // detected or forced
}

type Transcriber struct {
	model whisper.Model // interface, not pointer
}

func NewTranscriber(modelPath string) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// TranscribeFile decodes an audio file to 16 kHz mono and transcribes it.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string, opt Options) (Result, error) {
	pcm, err := audioconv.ConvertFileToPCM16k(path, audioconv.Options{})
	if err != nil {
		return Result{}, fmt.Errorf("decode audio: %w", err)
	}
	return t.TranscribePCM(ctx, pcm, opt)
}

// pcm16k must be mono @ 16 kHz, float32 in [-1, 1]
func (t *Transcriber) TranscribePCM(ctx context.Context, pcm16k []float32, opt Options) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	if opt.Language == "" {
		opt.Language = "auto"
	}
	if err := wctx.SetLanguage(opt.Language); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(opt.TranslateToEn)

	threads := opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if opt.BeamSize > 0 {
		wctx.SetBeamSize(opt.BeamSize)
	}
	if opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(opt.InitialPrompt)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var (
		segs     []Segment
		fullText string
	)
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		if fullText == "" {
			fullText = s.Text
		} else {
			fullText += " " + s.Text
		}
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return Result{
		Text:     fullText,
		Segments: segs,
		Language: lang,
	}, nil
}
