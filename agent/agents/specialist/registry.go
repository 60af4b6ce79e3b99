package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/grading"
	llmx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/llm"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
	promptx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/prompt"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/tool"
)

const (
	DefaultQuizSize     = 5
	MaxQuizQuestions    = 10
	DefaultMaxResources = tool.DefaultLookupLimit
)

// Deps wires the activities. Zero Prompts loads the embedded prompt set; a nil
// Lookup falls back to a ModelLookup over Models.ResourceFinder.
type Deps struct {
	Models     llmx.ModelSet
	Lookup     contractx.Lookup
	Engine     *grading.Engine
	Aggregator *progress.Aggregator
	Prompts    promptx.PromptSet

	QuizSize     int
	MaxResources int
	NewQuizID    func() string
}

type registryImpl struct {
	assessor  activity.Activity
	explainer activity.Activity
	quiz      activity.Activity
	resources activity.Activity
	reporter  activity.Activity
}

func (r *registryImpl) Assessor() activity.Activity       { return r.assessor }
func (r *registryImpl) Explainer() activity.Activity      { return r.explainer }
func (r *registryImpl) Quiz() activity.Activity           { return r.quiz }
func (r *registryImpl) ResourceFinder() activity.Activity { return r.resources }
func (r *registryImpl) Reporter() activity.Activity       { return r.reporter }

func NewRegistry(ctx context.Context, deps Deps) (activity.Registry, error) {
	if err := deps.Models.Validate(); err != nil {
		return nil, err
	}
	if deps.Engine == nil {
		deps.Engine = grading.NewEngine()
	}
	if deps.Aggregator == nil {
		deps.Aggregator = progress.NewAggregator()
	}
	if deps.Prompts == (promptx.PromptSet{}) {
		deps.Prompts = promptx.LoadPromptSet()
	}
	if deps.QuizSize <= 0 {
		deps.QuizSize = DefaultQuizSize
	}
	if deps.QuizSize > MaxQuizQuestions {
		return nil, fmt.Errorf("%w: quiz size %d exceeds %d", contractx.ErrValidation, deps.QuizSize, MaxQuizQuestions)
	}
	if deps.MaxResources <= 0 {
		deps.MaxResources = DefaultMaxResources
	}
	if deps.NewQuizID == nil {
		deps.NewQuizID = uuid.NewString
	}

	for name, p := range map[string]string{
		"assessor":        deps.Prompts.Assessor,
		"explainer":       deps.Prompts.Explainer,
		"quiz_generator":  deps.Prompts.QuizGenerator,
		"resource_finder": deps.Prompts.ResourceFinder,
	} {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
		}
	}

	if deps.Lookup == nil {
		lookup, err := tool.NewModelLookup(deps.Models.ResourceFinder, deps.Prompts.ResourceFinder, deps.MaxResources)
		if err != nil {
			return nil, err
		}
		deps.Lookup = lookup
	}

	quiz, err := newQuizActivity(ctx, deps)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		assessor:  &assessorActivity{model: deps.Models.Assessor, prompt: deps.Prompts.Assessor},
		explainer: &explainerActivity{model: deps.Models.Explainer, prompt: deps.Prompts.Explainer, aggregator: deps.Aggregator},
		quiz:      quiz,
		resources: &resourceActivity{lookup: deps.Lookup, limit: deps.MaxResources},
		reporter:  &reportActivity{aggregator: deps.Aggregator},
	}, nil
}
