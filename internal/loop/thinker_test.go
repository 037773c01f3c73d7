package loop

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"elaine/internal/llm"
)

func newTestThinker() *Thinker {
	l := newTestLoop(&fakeGen{}, &fakeVoice{}, &fakePlayer{}, nil)
	return NewThinker(l, &fakeGen{}, llm.NewPromptBuilder("Ваня", "Элейн-Сама"), 0)
}

func TestPushChatBacklogBound(t *testing.T) {
	th := newTestThinker()
	for i := 0; i < maxChatBacklog+10; i++ {
		th.PushChat(fmt.Sprintf("сообщение %d", i))
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	assert.Len(t, th.chat, maxChatBacklog)
	assert.Equal(t, "сообщение 10", th.chat[0])
}

func TestPushChatIgnoresBlank(t *testing.T) {
	th := newTestThinker()
	th.PushChat("   ")
	th.PushChat("")

	th.mu.Lock()
	defer th.mu.Unlock()
	assert.Empty(t, th.chat)
}

func TestBuildSeedVariants(t *testing.T) {
	th := newTestThinker()

	seed := th.buildSeed()
	assert.True(t, strings.HasPrefix(seed, "Скажи"), "generic seed without chat backlog")

	th.PushChat("привет от зрителя")
	seed = th.buildSeed()
	assert.Contains(t, seed, "привет от зрителя")
	assert.True(t, strings.HasPrefix(seed, "В чате написали"))
}
