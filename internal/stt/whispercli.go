package stt

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// WhisperCLI runs the whisper.cpp command-line binary on a wav file and
// parses the caption lines it prints.
type WhisperCLI struct {
	Bin      string
	Model    string
	Language string
	Threads  int
}

func NewWhisperCLI(bin, model, language string, threads int) *WhisperCLI {
	if threads <= 0 {
		threads = 4
	}
	return &WhisperCLI{Bin: bin, Model: model, Language: language, Threads: threads}
}

func (w *WhisperCLI) Transcribe(ctx context.Context, wavPath string) (string, error) {
	cmd := exec.CommandContext(ctx, w.Bin,
		"-m", w.Model,
		"-l", w.Language,
		"--threads", strconv.Itoa(w.Threads),
		wavPath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("whisper: %w", err)
	}

	return ParseCaptions(out.String()), nil
}

// ParseCaptions extracts the transcript from whisper-cli stdout. Caption
// lines look like "[00:00:00.000 --> 00:00:02.000]  text"; the transcript
// is whatever follows the last timestamp marker.
func ParseCaptions(out string) string {
	var last string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "-->") {
			last = line
		}
	}
	if last == "" {
		return ""
	}
	if i := strings.LastIndex(last, "]"); i >= 0 {
		last = last[i+1:]
	}
	return strings.TrimSpace(last)
}
