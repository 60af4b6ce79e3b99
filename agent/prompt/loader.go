package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/assessor.txt
	assessorRaw string

	//go:embed template/explainer.txt
	explainerRaw string

	//go:embed template/quiz_generator.txt
	quizGeneratorRaw string

	//go:embed template/resource_finder.txt
	resourceFinderRaw string
)

// PromptSet holds the system prompt of every model-backed activity.
type PromptSet struct {
	Assessor       string
	Explainer      string
	QuizGenerator  string
	ResourceFinder string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Assessor:       strings.TrimSpace(assessorRaw),
		Explainer:      strings.TrimSpace(explainerRaw),
		QuizGenerator:  strings.TrimSpace(quizGeneratorRaw),
		ResourceFinder: strings.TrimSpace(resourceFinderRaw),
	}
}
