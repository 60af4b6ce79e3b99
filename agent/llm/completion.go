package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	openrouterx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/openrouter"
)

// CompletionModel calls the chat completions endpoint through openai-go.
type CompletionModel struct {
	client      *openaisdk.Client
	model       string
	maxTokens   int
	temperature float32
}

var _ contractx.LanguageModel = (*CompletionModel)(nil)

func NewCompletionModel(client *openaisdk.Client, cfg openrouterx.Config) (*CompletionModel, error) {
	if client == nil {
		return nil, errors.New("openai client is nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	m := &CompletionModel{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
	}
	if cfg.MaxCompletionToken != nil {
		m.maxTokens = *cfg.MaxCompletionToken
	}
	return m, nil
}

func (m *CompletionModel) Generate(ctx context.Context, prompt string, input map[string]any) (string, error) {
	if prompt == "" {
		return "", contractx.ErrPromptMissing
	}
	payload, err := encodeInput(input)
	if err != nil {
		return "", err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(m.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(prompt),
			openaisdk.UserMessage(payload),
		},
		Temperature: openaisdk.Float(float64(m.temperature)),
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(m.maxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion has no choices", contractx.ErrModelInvoke)
	}
	return resp.Choices[0].Message.Content, nil
}
