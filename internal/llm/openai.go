package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"elaine/internal/proxy"
)

// OpenAI generates completions through a hosted chat-completion API,
// optionally tunneled through a SOCKS5 proxy.
type OpenAI struct {
	client openai.Client
	model  string
	params Params
}

func NewOpenAI(apiKey, model, socksAddr string, params Params) (*OpenAI, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if socksAddr != "" {
		httpClient, err := proxy.NewSocksClient(socksAddr)
		if err != nil {
			return nil, fmt.Errorf("dial socks proxy: %w", err)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		params: params,
	}, nil
}

func (g *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(g.model),
	}
	if g.params.MaxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(g.params.MaxTokens))
	}
	if g.params.Temperature > 0 {
		req.Temperature = openai.Float(g.params.Temperature)
	}
	if len(g.params.Stop) > 0 {
		req.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: g.params.Stop}
	}

	resp, err := g.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
