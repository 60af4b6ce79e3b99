package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

// Structured asks m for JSON and decodes it into T.
func Structured[T any](ctx context.Context, m contractx.LanguageModel, prompt string, input map[string]any) (T, error) {
	var zero T
	if m == nil {
		return zero, fmt.Errorf("%w: language model is nil", contractx.ErrValidation)
	}
	raw, err := m.Generate(ctx, prompt, input)
	if err != nil {
		return zero, err
	}
	return ParseJSON[T](ctx, raw)
}

// ParseJSON decodes a model reply into T, tolerating code fences and prose
// around the JSON object.
func ParseJSON[T any](ctx context.Context, raw string) (T, error) {
	var zero T
	body := extractJSON(raw)
	if body == "" {
		return zero, fmt.Errorf("%w: reply contains no JSON object", contractx.ErrSchemaViolation)
	}
	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})
	out, err := parser.Parse(ctx, schema.AssistantMessage(body, nil))
	if err != nil {
		return zero, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return out, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
