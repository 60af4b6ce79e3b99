package llm

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	openrouterx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/openrouter"
)

// ModelSet holds one language model per model-backed activity.
type ModelSet struct {
	Assessor       contractx.LanguageModel
	Explainer      contractx.LanguageModel
	QuizGenerator  contractx.LanguageModel
	ResourceFinder contractx.LanguageModel
}

func (s ModelSet) Validate() error {
	if s.Assessor == nil || s.Explainer == nil || s.QuizGenerator == nil || s.ResourceFinder == nil {
		return fmt.Errorf("%w: every activity needs a language model", contractx.ErrValidation)
	}
	return nil
}

// NewModelSet builds the per-activity models from cfg and wraps each one in
// guard when guard is non-nil.
func NewModelSet(ctx context.Context, cfg Config, guard *Guard) (ModelSet, error) {
	if err := cfg.Validate(); err != nil {
		return ModelSet{}, err
	}

	build := func(agentType contractx.AgentType) (contractx.LanguageModel, error) {
		orCfg := cfg.OpenRouterFor(agentType)
		m, err := newModel(ctx, strings.ToLower(strings.TrimSpace(cfg.Client)), orCfg, string(agentType))
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
		}
		if guard != nil {
			m = guard.Model(string(agentType), m)
		}
		return m, nil
	}

	var (
		set ModelSet
		err error
	)
	if set.Assessor, err = build(contractx.AgentTypeAssessor); err != nil {
		return ModelSet{}, err
	}
	if set.Explainer, err = build(contractx.AgentTypeExplainer); err != nil {
		return ModelSet{}, err
	}
	if set.QuizGenerator, err = build(contractx.AgentTypeQuizGenerator); err != nil {
		return ModelSet{}, err
	}
	if set.ResourceFinder, err = build(contractx.AgentTypeResourceFinder); err != nil {
		return ModelSet{}, err
	}
	return set, nil
}

func newModel(ctx context.Context, client string, cfg openrouterx.Config, name string) (contractx.LanguageModel, error) {
	if client == ClientOpenAI {
		return NewCompletionModel(openrouterx.NewClient(cfg), cfg)
	}
	chatModel, err := cfg.ChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return NewEinoModel(ctx, chatModel, name+".model_graph")
}
