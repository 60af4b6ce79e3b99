package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	openrouterx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/openrouter"
)

const (
	ClientEino   = "eino"
	ClientOpenAI = "openai"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	// Client selects the eino chat model or the raw openai-go client.
	Client string `envconfig:"CLIENT" split_words:"true" default:"eino"`

	AssessorModel             string  `envconfig:"ASSESSOR_MODEL" split_words:"true"`
	ExplainerModel            string  `envconfig:"EXPLAINER_MODEL" split_words:"true"`
	QuizGeneratorModel        string  `envconfig:"QUIZ_GENERATOR_MODEL" split_words:"true"`
	ResourceFinderModel       string  `envconfig:"RESOURCE_FINDER_MODEL" split_words:"true"`
	AssessorTemperature       float32 `envconfig:"ASSESSOR_TEMPERATURE" split_words:"true" default:"-1"`
	ExplainerTemperature      float32 `envconfig:"EXPLAINER_TEMPERATURE" split_words:"true" default:"-1"`
	QuizGeneratorTemperature  float32 `envconfig:"QUIZ_GENERATOR_TEMPERATURE" split_words:"true" default:"-1"`
	ResourceFinderTemperature float32 `envconfig:"RESOURCE_FINDER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	switch strings.ToLower(strings.TrimSpace(c.Client)) {
	case "", ClientEino, ClientOpenAI:
	default:
		return fmt.Errorf("%w: unknown llm client %q", contractx.ErrValidation, c.Client)
	}
	return nil
}

// OpenRouterFor resolves the model and temperature overrides of agentType.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, t float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if t >= 0 {
			temp = t
		}
	}
	switch agentType {
	case contractx.AgentTypeAssessor:
		override(c.AssessorModel, c.AssessorTemperature)
	case contractx.AgentTypeExplainer:
		override(c.ExplainerModel, c.ExplainerTemperature)
	case contractx.AgentTypeQuizGenerator:
		override(c.QuizGeneratorModel, c.QuizGeneratorTemperature)
	case contractx.AgentTypeResourceFinder:
		override(c.ResourceFinderModel, c.ResourceFinderTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
