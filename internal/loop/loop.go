package loop

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"elaine/internal/audio"
	"elaine/internal/llm"
	"elaine/internal/memory"
	"elaine/pkg/audioconv"
)

// Listener produces one validated voice capture or an error
// (timeout / too quiet) that the loop treats as "listen again".
type Listener interface {
	Capture(ctx context.Context) ([]float32, error)
}

// Recognizer turns captured samples into text, or "" when nothing was
// recognized.
type Recognizer interface {
	RecognizeSamples(ctx context.Context, samples []float32, rate int) string
}

// Voice renders text into a playable clip; empty clip means "no audio
// produced".
type Voice interface {
	Render(ctx context.Context, text string) audioconv.Clip
}

// Player plays a clip, feeding the volume envelope to onFrame.
type Player interface {
	Play(ctx context.Context, clip audioconv.Clip, onFrame func(level float64)) error
}

// Mouth drives the avatar. May be nil; mouth sync is optional and its
// failures never break a turn.
type Mouth interface {
	Authenticate() error
	SetParameter(name string, value float64) error
}

type Config struct {
	SampleRate   int
	HistoryBound int
	Pause        time.Duration
	MouthParam   string
}

// Loop owns the turn-taking state: the bounded history and the
// last-utterance/last-response trackers. The history is only mutated
// under mu; the thinker and chat bridge read snapshots through it.
type Loop struct {
	cfg       Config
	listen    Listener
	recognize Recognizer
	gen       llm.Generator
	prompt    llm.PromptBuilder
	voice     Voice
	player    Player
	mouth     Mouth
	mem       *memory.Log
	log       *slog.Logger

	mu           sync.Mutex
	history      []string
	lastText     string
	lastResponse string
	muted        bool
	forceListen  bool
	lastVoiceAt  time.Time
}

func New(cfg Config, listen Listener, recognize Recognizer, gen llm.Generator, prompt llm.PromptBuilder, voice Voice, player Player, mouth Mouth, mem *memory.Log) *Loop {
	if cfg.HistoryBound <= 0 {
		cfg.HistoryBound = 4
	}
	return &Loop{
		cfg:         cfg,
		listen:      listen,
		recognize:   recognize,
		gen:         gen,
		prompt:      prompt,
		voice:       voice,
		player:      player,
		mouth:       mouth,
		mem:         mem,
		log:         slog.Default().With("component", "loop"),
		lastVoiceAt: time.Now(),
	}
}

// SeedHistory loads remembered exchanges into the dialogue history.
func (l *Loop) SeedHistory(records []memory.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range records {
		l.appendEntryLocked(l.prompt.Turn(r.Summary, r.Response))
	}
}

// Run drives listen → transcribe → generate → speak until ctx ends.
func (l *Loop) Run(ctx context.Context) {
	for ctx.Err() == nil {
		l.step(ctx)
	}
}

func (l *Loop) step(ctx context.Context) {
	if l.Muted() && !l.takeForce() {
		select {
		case <-ctx.Done():
		case <-time.After(200 * time.Millisecond):
		}
		return
	}

	samples, err := l.listen.Capture(ctx)
	if err != nil {
		switch err {
		case audio.ErrNoVoice:
			l.log.Debug("no voice before timeout")
		case audio.ErrTooQuiet:
			l.log.Debug("discarded capture as noise")
		case context.Canceled, context.DeadlineExceeded:
		default:
			l.log.Error("capture failed", "err", err)
		}
		return
	}
	l.TouchVoice()

	text := l.recognize.RecognizeSamples(ctx, samples, l.cfg.SampleRate)
	if strings.TrimSpace(text) == "" {
		l.log.Info("nothing recognized")
		return
	}
	l.log.Info("heard", "text", text)

	l.HandleUtterance(ctx, text)
}

// HandleUtterance runs one generate/speak turn for an accepted
// transcript.
func (l *Loop) HandleUtterance(ctx context.Context, text string) {
	l.mu.Lock()
	lastText := l.lastText
	lastResponse := l.lastResponse
	history := append([]string(nil), l.history...)
	l.mu.Unlock()

	// Echo guard: the mic picking our own voice (or a stutter-repeat of
	// the user) must not reach the generator.
	if prefixRepeat(text, lastText) {
		l.log.Info("utterance repeats the previous one, skipping")
		return
	}

	if !llm.EndsSentence(text) {
		l.log.Info("utterance looks unfinished, answering anyway")
	}

	prompt := l.prompt.Build(history, text)
	reply, err := l.gen.Generate(ctx, prompt)
	if err != nil {
		l.log.Error("generation failed", "err", err)
		return
	}
	reply = llm.DedupClauses(strings.TrimSpace(reply))
	if reply == "" {
		l.log.Warn("empty completion")
		return
	}
	if !llm.EndsSentence(reply) {
		l.log.Info("reply looks unfinished")
	}

	// Anti-loop guard: a repeated reply is not voiced, but it is still
	// recorded so a third repeat is skipped too.
	if prefixRepeat(reply, lastResponse) {
		l.log.Info("reply repeats the previous one, skipping playback")
		l.mu.Lock()
		l.lastText = text
		l.lastResponse = reply
		l.mu.Unlock()
		return
	}

	l.log.Info("reply", "text", reply)
	l.speak(ctx, reply)

	// Let the synthesized voice fade before the mic opens again.
	if l.cfg.Pause > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(l.cfg.Pause):
		}
	}

	l.mu.Lock()
	l.appendEntryLocked(l.prompt.Turn(text, reply))
	l.lastText = text
	l.lastResponse = reply
	l.mu.Unlock()

	if l.mem != nil {
		if err := l.mem.Append(text, reply); err != nil {
			l.log.Warn("memory append failed", "err", err)
		}
	}
}

// Say voices arbitrary text outside the listen cycle (control socket,
// thinker, chat bridge).
func (l *Loop) Say(ctx context.Context, text string) {
	l.speak(ctx, text)
}

func (l *Loop) speak(ctx context.Context, text string) {
	clip := l.voice.Render(ctx, text)
	if clip.Empty() {
		return
	}

	var onFrame func(float64)
	if l.mouth != nil {
		if err := l.mouth.Authenticate(); err != nil {
			l.log.Warn("avatar auth failed, mouth sync off for this turn", "err", err)
		} else {
			onFrame = func(level float64) {
				if err := l.mouth.SetParameter(l.cfg.MouthParam, level); err != nil {
					l.log.Debug("mouth frame skipped", "err", err)
				}
			}
		}
	}

	if err := l.player.Play(ctx, clip, onFrame); err != nil && ctx.Err() == nil {
		l.log.Error("playback failed", "err", err)
	}
}

// RecordAssistant appends an assistant-only line to the history (used
// by the thinker for unprompted remarks).
func (l *Loop) RecordAssistant(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendEntryLocked(l.prompt.BotName + ": " + text)
	l.lastResponse = text
}

// History returns a snapshot of the current dialogue history.
func (l *Loop) History() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.history...)
}

func (l *Loop) SetMuted(muted bool) {
	l.mu.Lock()
	l.muted = muted
	l.mu.Unlock()
}

func (l *Loop) Muted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.muted
}

// ForceListen makes the next step listen once even while muted.
func (l *Loop) ForceListen() {
	l.mu.Lock()
	l.forceListen = true
	l.mu.Unlock()
}

func (l *Loop) takeForce() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.forceListen
	l.forceListen = false
	return f
}

// TouchVoice marks voice activity now (resets the thinker's idle timer).
func (l *Loop) TouchVoice() {
	l.mu.Lock()
	l.lastVoiceAt = time.Now()
	l.mu.Unlock()
}

// LastVoice reports when voice activity was last seen.
func (l *Loop) LastVoice() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastVoiceAt
}

// appendEntryLocked appends a turn, skipping exact duplicates and
// evicting the oldest entry past the bound.
func (l *Loop) appendEntryLocked(entry string) {
	for _, e := range l.history {
		if e == entry {
			return
		}
	}
	l.history = append(l.history, entry)
	if len(l.history) > l.cfg.HistoryBound {
		l.history = l.history[len(l.history)-l.cfg.HistoryBound:]
	}
}

// prefixRepeat reports whether cur and last repeat each other: either
// string being a case-insensitive prefix of the other counts.
func prefixRepeat(cur, last string) bool {
	a := strings.ToLower(strings.TrimSpace(cur))
	b := strings.ToLower(strings.TrimSpace(last))
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
