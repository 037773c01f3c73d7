package loop

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elaine/internal/audio"
	"elaine/internal/llm"
	"elaine/internal/memory"
	"elaine/pkg/audioconv"
)

type fakeListener struct {
	calls   int
	samples []float32
	err     error
}

func (f *fakeListener) Capture(ctx context.Context) ([]float32, error) {
	f.calls++
	return f.samples, f.err
}

type fakeRecognizer struct {
	calls int
	text  string
}

func (f *fakeRecognizer) RecognizeSamples(ctx context.Context, samples []float32, rate int) string {
	f.calls++
	return f.text
}

type fakeGen struct {
	calls   int
	replies []string
	err     error
}

func (f *fakeGen) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "Ответ.", nil
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r, nil
}

type fakeVoice struct {
	calls int
	clip  audioconv.Clip
}

func (f *fakeVoice) Render(ctx context.Context, text string) audioconv.Clip {
	f.calls++
	return f.clip
}

type fakePlayer struct {
	calls int
}

func (f *fakePlayer) Play(ctx context.Context, clip audioconv.Clip, onFrame func(level float64)) error {
	f.calls++
	if onFrame != nil {
		onFrame(0.5)
		onFrame(0)
	}
	return nil
}

type fakeMouth struct {
	authCalls int
	authErr   error
	frames    []float64
}

func (f *fakeMouth) Authenticate() error {
	f.authCalls++
	return f.authErr
}

func (f *fakeMouth) SetParameter(name string, value float64) error {
	f.frames = append(f.frames, value)
	return nil
}

func newTestLoop(gen *fakeGen, voice *fakeVoice, player *fakePlayer, mouth Mouth) *Loop {
	prompt := llm.NewPromptBuilder("Ваня", "Элейн-Сама")
	return New(Config{
		SampleRate:   16000,
		HistoryBound: 4,
		Pause:        0,
		MouthParam:   "MouthOpen",
	}, nil, nil, gen, prompt, voice, player, mouth, nil)
}

func speakableClip() audioconv.Clip {
	return audioconv.Clip{Samples: make([]float32, 16000), Rate: 16000}
}

func newSteppedLoop(listen Listener, rec Recognizer, gen *fakeGen) *Loop {
	prompt := llm.NewPromptBuilder("Ваня", "Элейн-Сама")
	return New(Config{
		SampleRate:   16000,
		HistoryBound: 4,
		Pause:        0,
		MouthParam:   "MouthOpen",
	}, listen, rec, gen, prompt, &fakeVoice{}, &fakePlayer{}, nil, nil)
}

func TestStepNoVoiceTimeout(t *testing.T) {
	listener := &fakeListener{err: audio.ErrNoVoice}
	rec := &fakeRecognizer{}
	gen := &fakeGen{}
	l := newSteppedLoop(listener, rec, gen)
	before := l.LastVoice()

	l.step(context.Background())

	assert.Equal(t, 1, listener.calls)
	assert.Equal(t, 0, rec.calls, "a waited-out capture must not reach the recognizer")
	assert.Equal(t, 0, gen.calls)
	assert.Empty(t, l.History())
	assert.True(t, l.LastVoice().Equal(before), "silence must not count as voice activity")
}

func TestStepTooQuietCapture(t *testing.T) {
	listener := &fakeListener{err: audio.ErrTooQuiet}
	rec := &fakeRecognizer{}
	gen := &fakeGen{}
	l := newSteppedLoop(listener, rec, gen)
	before := l.LastVoice()

	l.step(context.Background())

	assert.Equal(t, 0, rec.calls)
	assert.Equal(t, 0, gen.calls)
	assert.Empty(t, l.History())
	assert.True(t, l.LastVoice().Equal(before))
}

func TestStepNothingRecognized(t *testing.T) {
	listener := &fakeListener{samples: make([]float32, 16000)}
	rec := &fakeRecognizer{text: "   "}
	gen := &fakeGen{}
	l := newSteppedLoop(listener, rec, gen)

	l.step(context.Background())

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 0, gen.calls, "a blank transcript must not reach the generator")
	assert.Empty(t, l.History())
}

func TestStepFullTurn(t *testing.T) {
	listener := &fakeListener{samples: make([]float32, 16000)}
	rec := &fakeRecognizer{text: "привет"}
	gen := &fakeGen{replies: []string{"Привет, Ваня!"}}
	l := newSteppedLoop(listener, rec, gen)

	l.step(context.Background())

	assert.Equal(t, 1, gen.calls)
	require.Len(t, l.History(), 1)
	assert.Equal(t, "Ваня: привет\nЭлейн-Сама: Привет, Ваня!", l.History()[0])
}

func TestStepMutedSkipsListening(t *testing.T) {
	listener := &fakeListener{samples: make([]float32, 16000)}
	rec := &fakeRecognizer{text: "привет"}
	l := newSteppedLoop(listener, rec, &fakeGen{})
	l.SetMuted(true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.step(ctx)

	assert.Equal(t, 0, listener.calls, "a muted loop must not open the microphone")

	// ForceListen opens the microphone once even while muted.
	l.ForceListen()
	l.step(context.Background())
	assert.Equal(t, 1, listener.calls)
}

func TestHandleUtteranceFullTurn(t *testing.T) {
	gen := &fakeGen{replies: []string{"Привет, Ваня!"}}
	voice := &fakeVoice{clip: speakableClip()}
	player := &fakePlayer{}
	mouth := &fakeMouth{}
	l := newTestLoop(gen, voice, player, mouth)

	l.HandleUtterance(context.Background(), "привет")

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, voice.calls)
	assert.Equal(t, 1, player.calls)
	assert.Equal(t, []float64{0.5, 0}, mouth.frames)

	history := l.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Ваня: привет\nЭлейн-Сама: Привет, Ваня!", history[0])
}

func TestEchoGuardSkipsGenerator(t *testing.T) {
	gen := &fakeGen{}
	voice := &fakeVoice{clip: speakableClip()}
	l := newTestLoop(gen, voice, &fakePlayer{}, nil)

	l.HandleUtterance(context.Background(), "как дела?")
	require.Equal(t, 1, gen.calls)

	// The same utterance again is an echo and must not reach the generator.
	l.HandleUtterance(context.Background(), "как дела?")
	assert.Equal(t, 1, gen.calls)

	// A prefix of the previous utterance counts too.
	l.HandleUtterance(context.Background(), "как дела")
	assert.Equal(t, 1, gen.calls)
}

func TestAntiLoopGuardSkipsPlayback(t *testing.T) {
	gen := &fakeGen{replies: []string{"Я Элейн-Сама.", "Я Элейн-Сама."}}
	voice := &fakeVoice{clip: speakableClip()}
	player := &fakePlayer{}
	l := newTestLoop(gen, voice, player, nil)

	l.HandleUtterance(context.Background(), "кто ты?")
	require.Equal(t, 1, player.calls)

	l.HandleUtterance(context.Background(), "расскажи о себе.")
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, 1, player.calls, "repeated reply must not be voiced")

	// The repeat is still recorded, so a third identical reply is skipped too.
	l.HandleUtterance(context.Background(), "кто же ты?")
	assert.Equal(t, 1, player.calls)
}

func TestGenerationErrorEndsTurn(t *testing.T) {
	gen := &fakeGen{err: errors.New("backend down")}
	voice := &fakeVoice{clip: speakableClip()}
	player := &fakePlayer{}
	l := newTestLoop(gen, voice, player, nil)

	l.HandleUtterance(context.Background(), "привет")
	assert.Equal(t, 0, voice.calls)
	assert.Equal(t, 0, player.calls)
	assert.Empty(t, l.History())
}

func TestMouthAuthFailureStillSpeaks(t *testing.T) {
	gen := &fakeGen{replies: []string{"Привет!"}}
	voice := &fakeVoice{clip: speakableClip()}
	player := &fakePlayer{}
	mouth := &fakeMouth{authErr: errors.New("rejected")}
	l := newTestLoop(gen, voice, player, mouth)

	l.HandleUtterance(context.Background(), "привет")
	assert.Equal(t, 1, player.calls, "playback must not depend on the avatar")
	assert.Empty(t, mouth.frames)
}

func TestHistoryBound(t *testing.T) {
	gen := &fakeGen{replies: []string{
		"Ответ ноль.", "Ответ один.", "Ответ два.",
		"Ответ три.", "Ответ четыре.", "Ответ пять.",
	}}
	voice := &fakeVoice{} // empty clip, nothing is played
	l := newTestLoop(gen, voice, &fakePlayer{}, nil)

	for i := 0; i < 6; i++ {
		l.HandleUtterance(context.Background(), fmt.Sprintf("вопрос номер %d?", i))
	}

	history := l.History()
	require.Len(t, history, 4)
	assert.Contains(t, history[0], "вопрос номер 2?")
	assert.Contains(t, history[3], "вопрос номер 5?")
}

func TestSeedHistory(t *testing.T) {
	l := newTestLoop(&fakeGen{}, &fakeVoice{}, &fakePlayer{}, nil)
	l.SeedHistory([]memory.Record{
		{Summary: "привет", Response: "Привет!"},
		{Summary: "как дела?", Response: "Отлично."},
	})

	history := l.History()
	require.Len(t, history, 2)
	assert.Equal(t, "Ваня: привет\nЭлейн-Сама: Привет!", history[0])
}

func TestRecordAssistant(t *testing.T) {
	l := newTestLoop(&fakeGen{}, &fakeVoice{}, &fakePlayer{}, nil)
	l.RecordAssistant("Скучно тут.")

	history := l.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Элейн-Сама: Скучно тут.", history[0])
}

func TestMuteAndForceListen(t *testing.T) {
	l := newTestLoop(&fakeGen{}, &fakeVoice{}, &fakePlayer{}, nil)

	assert.False(t, l.Muted())
	l.SetMuted(true)
	assert.True(t, l.Muted())

	assert.False(t, l.takeForce())
	l.ForceListen()
	assert.True(t, l.takeForce())
	assert.False(t, l.takeForce(), "force flag is one-shot")
}

func TestPrefixRepeat(t *testing.T) {
	tests := []struct {
		cur, last string
		want      bool
	}{
		{"привет", "привет", true},
		{"привет мир", "привет", true},
		{"привет", "привет мир", true},
		{"ПРИВЕТ", "привет", true},
		{"пока", "привет", false},
		{"", "привет", false},
		{"привет", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, prefixRepeat(tt.cur, tt.last), "%q vs %q", tt.cur, tt.last)
	}
}
