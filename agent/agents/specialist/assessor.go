package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	llmx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/llm"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

type assessorActivity struct {
	model  contractx.LanguageModel
	prompt string
}

type assessorLLMOutput struct {
	KnowledgeLevel   string   `json:"knowledge_level"`
	LearningStyle    string   `json:"learning_style"`
	Strengths        []string `json:"strengths"`
	Gaps             []string `json:"gaps"`
	RecommendedFocus []string `json:"recommended_focus"`
	Summary          string   `json:"summary"`
}

// Assessment is the public result of an assessment turn.
type Assessment struct {
	Topic            string                `json:"topic"`
	KnowledgeLevel   memory.KnowledgeLevel `json:"knowledge_level"`
	LearningStyle    memory.LearningStyle  `json:"learning_style"`
	Strengths        []string              `json:"strengths"`
	Gaps             []string              `json:"gaps"`
	RecommendedFocus []string              `json:"recommended_focus"`
}

func (a *assessorActivity) Run(ctx context.Context, req activity.Request) (activity.Response, error) {
	profile := req.Profile()
	topic := req.Topic
	if topic == "" {
		topic = memory.GeneralTopic
	}

	out, err := llmx.Structured[assessorLLMOutput](ctx, a.model, a.prompt, map[string]any{
		"topic":   req.Topic,
		"message": req.Payload.Message,
		"profile": profileSummary(profile),
	})
	if err != nil {
		return activity.Response{}, err
	}

	level, ok := memory.ParseKnowledgeLevel(out.KnowledgeLevel)
	if !ok {
		return activity.Response{}, fmt.Errorf("%w: knowledge_level=%q", contractx.ErrSchemaViolation, out.KnowledgeLevel)
	}
	style, ok := memory.ParseLearningStyle(out.LearningStyle)
	if !ok {
		if profile.LearningStyle == memory.StyleUnset {
			return activity.Response{}, fmt.Errorf("%w: learning_style=%q", contractx.ErrSchemaViolation, out.LearningStyle)
		}
		style = profile.LearningStyle
	}

	assessment := Assessment{
		Topic:            topic,
		KnowledgeLevel:   level,
		LearningStyle:    style,
		Strengths:        cleanList(out.Strengths),
		Gaps:             cleanList(out.Gaps),
		RecommendedFocus: cleanList(out.RecommendedFocus),
	}

	message := strings.TrimSpace(out.Summary)
	if message == "" {
		message = fmt.Sprintf("You look %s on %s and learn best with a %s approach.", level, topic, style)
	}

	return activity.Response{
		Activity: statex.ActivityAssess,
		Message:  message,
		Data:     assessment,
		Delta: memory.Delta{
			Patch: memory.ProfilePatch{
				KnowledgeLevels: map[string]memory.KnowledgeLevel{topic: level},
				LearningStyle:   &style,
			},
		},
	}, nil
}

func profileSummary(p memory.StudentProfile) map[string]any {
	return map[string]any{
		"knowledge_level":  p.KnowledgeLevels,
		"learning_style":   p.LearningStyle,
		"goals":            p.Goals,
		"completed_topics": p.CompletedTopics,
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
