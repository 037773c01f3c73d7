package llm

import (
	"strings"
	"unicode"
)

// DefaultPersona is the identity preamble every prompt starts with.
const DefaultPersona = "Ты — Элейн-Сама, русскоязычный голосовой AI-ассистент. " +
	"Отвечай от первого лица, называй себя «Элейн-Сама». " +
	"Будь вежливой и дружелюбной."

// PromptBuilder assembles the persona preamble, the bounded history and
// the new utterance into a single prompt ending on the assistant's
// speaker marker.
type PromptBuilder struct {
	Persona  string
	UserName string
	BotName  string
}

func NewPromptBuilder(userName, botName string) PromptBuilder {
	return PromptBuilder{Persona: DefaultPersona, UserName: userName, BotName: botName}
}

func (b PromptBuilder) Build(history []string, utterance string) string {
	var sb strings.Builder
	sb.WriteString(b.Persona)
	sb.WriteString("\n\n")
	for _, turn := range history {
		sb.WriteString(turn)
		sb.WriteString("\n")
	}
	sb.WriteString(b.UserName)
	sb.WriteString(": ")
	sb.WriteString(strings.TrimSpace(utterance))
	sb.WriteString("\n")
	sb.WriteString(b.BotName)
	sb.WriteString(":")
	return sb.String()
}

// StopSequences are the speaker markers; handing them to the backend
// keeps it from continuing the dialogue on the user's behalf.
func (b PromptBuilder) StopSequences() []string {
	return []string{b.UserName + ":", b.BotName + ":"}
}

// Turn formats one exchange the way it is stored in history.
func (b PromptBuilder) Turn(user, assistant string) string {
	return b.UserName + ": " + user + "\n" + b.BotName + ": " + assistant
}

// DedupClauses removes repeated clauses from a completion, preserving
// first-occurrence order. Clauses are split at comma and sentence
// boundaries with their punctuation retained, and compared
// case-insensitively ignoring trailing punctuation.
func DedupClauses(text string) string {
	segments := splitClauses(text)
	if len(segments) < 2 {
		return strings.TrimSpace(text)
	}

	seen := make(map[string]bool, len(segments))
	var kept []string
	for _, seg := range segments {
		key := clauseKey(seg)
		if key == "" {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, seg)
	}
	return strings.Join(kept, " ")
}

func splitClauses(text string) []string {
	var (
		segs []string
		b    strings.Builder
	)
	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			segs = append(segs, s)
		}
		b.Reset()
	}
	for _, r := range text {
		b.WriteRune(r)
		switch r {
		case ',', '.', '!', '?', '…', '\n':
			flush()
		}
	}
	flush()
	return segs
}

func clauseKey(seg string) string {
	return strings.ToLower(strings.TrimRightFunc(seg, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	}))
}

// EndsSentence reports whether text finishes with terminal punctuation.
// Unfinished turns are still answered; the loop only logs them.
func EndsSentence(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	r := []rune(text)
	return strings.ContainsRune(".!?…»", r[len(r)-1])
}
