package llm

import "context"

// Generator produces a completion for a fully built prompt. Backend
// errors propagate to the caller as generation failures.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params are fixed generation settings shared by the backends.
type Params struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}
