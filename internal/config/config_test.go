package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("does-not-exist.env")

	assert.Equal(t, 16000, cfg.SampleRate)
	assert.Equal(t, 0.015, cfg.VoiceThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.ProbeWindow)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout)
	assert.Equal(t, 3500*time.Millisecond, cfg.RecordWindow)
	assert.Equal(t, "cli", cfg.STTBackend)
	assert.Equal(t, "ollama", cfg.LLMBackend)
	assert.Equal(t, "xtts", cfg.TTSBackend)
	assert.Equal(t, "Ваня", cfg.UserName)
	assert.Equal(t, "Элейн-Сама", cfg.BotName)
	assert.Equal(t, 4, cfg.HistoryBound)
	assert.Equal(t, time.Second, cfg.Pause)
	assert.Equal(t, "MouthOpen", cfg.MouthParam)
	assert.Equal(t, 4.2, cfg.MouthGain)
	assert.True(t, cfg.AvatarEnabled)
	assert.False(t, cfg.ThinkerEnabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SAMPLE_RATE", "44100")
	t.Setenv("VOICE_THRESHOLD", "0.03")
	t.Setenv("WAIT_TIMEOUT", "5s")
	t.Setenv("LLM_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AVATAR_ENABLED", "false")
	t.Setenv("HISTORY_BOUND", "8")

	cfg := Load("does-not-exist.env")

	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 0.03, cfg.VoiceThreshold)
	assert.Equal(t, 5*time.Second, cfg.WaitTimeout)
	assert.Equal(t, "openai", cfg.LLMBackend)
	assert.False(t, cfg.AvatarEnabled)
	assert.Equal(t, 8, cfg.HistoryBound)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SAMPLE_RATE", "not-a-number")
	t.Setenv("WAIT_TIMEOUT", "soon")
	t.Setenv("AVATAR_ENABLED", "maybe")

	cfg := Load("does-not-exist.env")

	assert.Equal(t, 16000, cfg.SampleRate)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout)
	assert.True(t, cfg.AvatarEnabled)
}

func TestTwitchDisabledWithoutChannel(t *testing.T) {
	t.Setenv("TWITCH_ENABLED", "true")

	cfg := Load("does-not-exist.env")
	assert.False(t, cfg.TwitchEnabled)
}
