package llm

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

// EinoModel runs a prompt -> chat model graph. The system prompt travels as
// a template variable, so literal braces in prompts need no escaping.
type EinoModel struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

var _ contractx.LanguageModel = (*EinoModel)(nil)

func NewEinoModel(ctx context.Context, chatModel einomodel.BaseChatModel, graphName string) (*EinoModel, error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return &EinoModel{runner: runner}, nil
}

func (m *EinoModel) Generate(ctx context.Context, prompt string, input map[string]any) (string, error) {
	if prompt == "" {
		return "", contractx.ErrPromptMissing
	}
	payload, err := encodeInput(input)
	if err != nil {
		return "", err
	}
	msg, err := m.runner.Invoke(ctx, map[string]any{
		"system": prompt,
		"input":  payload,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty model message", contractx.ErrModelInvoke)
	}
	return msg.Content, nil
}

func encodeInput(input map[string]any) (string, error) {
	if input == nil {
		input = map[string]any{}
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("%w: marshal model input: %v", contractx.ErrValidation, err)
	}
	return string(b), nil
}
