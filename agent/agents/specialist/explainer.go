package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

type explainerActivity struct {
	model      contractx.LanguageModel
	prompt     string
	aggregator *progress.Aggregator
}

type Explanation struct {
	Topic    string `json:"topic"`
	Markdown string `json:"markdown"`
}

func (e *explainerActivity) Run(ctx context.Context, req activity.Request) (activity.Response, error) {
	topic := req.Topic
	if topic == "" {
		topic = strings.TrimSpace(req.Payload.Message)
	}
	if topic == "" {
		return activity.Response{}, fmt.Errorf("%w: explanation needs a topic or a message", contractx.ErrValidation)
	}

	profile := req.Profile()
	report := e.aggregator.Compute(profile, req.Snapshot.History, "")

	reply, err := e.model.Generate(ctx, e.prompt, map[string]any{
		"topic":           topic,
		"message":         req.Payload.Message,
		"knowledge_level": profile.KnowledgeLevelFor(req.Topic),
		"learning_style":  profile.LearningStyle,
		"goals":           profile.Goals,
		"weak_areas":      report.WeakAreas,
	})
	if err != nil {
		return activity.Response{}, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return activity.Response{}, fmt.Errorf("%w: explanation is empty", contractx.ErrSchemaViolation)
	}

	return activity.Response{
		Activity: statex.ActivityExplain,
		Message:  reply,
		Data:     Explanation{Topic: topic, Markdown: reply},
	}, nil
}
