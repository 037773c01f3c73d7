package loop

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"elaine/internal/llm"
)

const maxChatBacklog = 20

// Thinker fills sustained silence with unprompted remarks. It never
// touches the loop's history directly; snapshots and appends go through
// the loop's accessors.
type Thinker struct {
	loop   *Loop
	gen    llm.Generator
	prompt llm.PromptBuilder
	idle   time.Duration
	log    *slog.Logger

	mu   sync.Mutex
	chat []string
}

func NewThinker(l *Loop, gen llm.Generator, prompt llm.PromptBuilder, idle time.Duration) *Thinker {
	if idle <= 0 {
		idle = 15 * time.Second
	}
	return &Thinker{
		loop:   l,
		gen:    gen,
		prompt: prompt,
		idle:   idle,
		log:    slog.Default().With("component", "thinker"),
	}
}

// PushChat feeds a chat message into the pool of self-talk seeds.
func (t *Thinker) PushChat(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	t.mu.Lock()
	t.chat = append(t.chat, message)
	if len(t.chat) > maxChatBacklog {
		t.chat = t.chat[len(t.chat)-maxChatBacklog:]
	}
	t.mu.Unlock()
}

func (t *Thinker) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if time.Since(t.loop.LastVoice()) < t.idle {
			continue
		}

		seed := t.buildSeed()
		t.log.Info("silence, thinking aloud", "seed", seed)

		remark, err := t.gen.Generate(ctx, t.prompt.Build(t.loop.History(), seed))
		if err != nil {
			t.log.Warn("self-talk generation failed", "err", err)
			continue
		}
		remark = llm.DedupClauses(strings.TrimSpace(remark))
		if remark == "" {
			continue
		}

		t.loop.Say(ctx, remark)
		t.loop.RecordAssistant(remark)
		// Avoid monologuing back to back.
		t.loop.TouchVoice()
	}
}

func (t *Thinker) buildSeed() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.chat) > 0 {
		recent := t.chat
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		sample := recent[rand.Intn(len(recent))]
		return "В чате написали: «" + sample + "». Ответь весело и коротко."
	}
	return "Скажи что-нибудь сама — шутку, мнение или короткую фразу."
}
