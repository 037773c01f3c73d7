package tts

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"elaine/internal/proxy"
	"elaine/pkg/audioconv"
)

// OpenAISpeech synthesizes through the hosted speech endpoint. The mp3
// response is decoded to a mono clip.
type OpenAISpeech struct {
	client openai.Client
	voice  string
}

func NewOpenAISpeech(apiKey, voice, socksAddr string) (*OpenAISpeech, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if socksAddr != "" {
		httpClient, err := proxy.NewSocksClient(socksAddr)
		if err != nil {
			return nil, fmt.Errorf("dial socks proxy: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAISpeech{client: openai.NewClient(opts...), voice: voice}, nil
}

func (o *OpenAISpeech) Synthesize(ctx context.Context, text string) (audioconv.Clip, error) {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return audioconv.Clip{}, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	clip, err := audioconv.DecodeMP3(resp.Body)
	if err != nil {
		return audioconv.Clip{}, fmt.Errorf("decode speech mp3: %w", err)
	}
	return clip, nil
}
