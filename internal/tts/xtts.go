package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"elaine/pkg/audioconv"
)

// XTTS speaks to a locally hosted XTTS (or silero) HTTP server that
// answers with a wav body.
type XTTS struct {
	URL        string
	Language   string
	SpeakerWav string
	HTTPClient *http.Client
}

type xttsRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language,omitempty"`
	SpeakerWav string `json:"speaker_wav,omitempty"`
}

func NewXTTS(url, language, speakerWav string) *XTTS {
	return &XTTS{
		URL:        url,
		Language:   language,
		SpeakerWav: speakerWav,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (x *XTTS) Synthesize(ctx context.Context, text string) (audioconv.Clip, error) {
	payload, err := json.Marshal(xttsRequest{Text: text, Language: x.Language, SpeakerWav: x.SpeakerWav})
	if err != nil {
		return audioconv.Clip{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.URL, bytes.NewReader(payload))
	if err != nil {
		return audioconv.Clip{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.HTTPClient.Do(req)
	if err != nil {
		return audioconv.Clip{}, fmt.Errorf("xtts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return audioconv.Clip{}, fmt.Errorf("xtts status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return audioconv.Clip{}, err
	}
	clip, err := audioconv.DecodeWAV(bytes.NewReader(body))
	if err != nil {
		return audioconv.Clip{}, fmt.Errorf("decode xtts wav: %w", err)
	}
	return clip, nil
}
