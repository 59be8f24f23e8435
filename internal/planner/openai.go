package planner

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
)

const (
	defaultOpenAIModel = "gpt-4.1-mini"
	openAITimeout      = 2 * time.Minute
)

// OpenAI talks to any OpenAI-compatible chat endpoint (OpenAI, OpenRouter, a local Ollama).
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

func (o *OpenAI) Generate(ctx context.Context, subtitles string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, openAITimeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(subtitles)),
		},
		Model:       o.model,
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "chat completion (model=%s)", o.model)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, errors.New("model returned an empty message")
	}
	return []byte(content), nil
}
