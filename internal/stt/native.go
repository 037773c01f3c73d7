package stt

import (
	"context"

	whisper "elaine/pkg/stt"
)

// WhisperNative runs whisper.cpp in-process through the Go bindings,
// avoiding a subprocess per utterance.
type WhisperNative struct {
	tr   *whisper.Transcriber
	opts whisper.Options
}

func NewWhisperNative(modelPath, language string, threads int) (*WhisperNative, error) {
	tr, err := whisper.NewTranscriber(modelPath)
	if err != nil {
		return nil, err
	}
	return &WhisperNative{
		tr:   tr,
		opts: whisper.Options{Language: language, Threads: threads},
	}, nil
}

func (w *WhisperNative) Transcribe(ctx context.Context, wavPath string) (string, error) {
	res, err := w.tr.TranscribeFile(ctx, wavPath, w.opts)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (w *WhisperNative) Close() error {
	return w.tr.Close()
}
