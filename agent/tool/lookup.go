package tool

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	llmx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/llm"
)

const DefaultLookupLimit = 5

// ModelLookup answers resource searches with a language model prompted to
// recommend well-known learning resources.
type ModelLookup struct {
	model  contractx.LanguageModel
	prompt string
	limit  int
}

var _ contractx.Lookup = (*ModelLookup)(nil)

type lookupLLMOutput struct {
	Results []lookupResult `json:"results"`
}

type lookupResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	Description string `json:"description"`
	ContentType string `json:"content_type"`
}

func NewModelLookup(model contractx.LanguageModel, prompt string, limit int) (*ModelLookup, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: lookup model is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, contractx.ErrPromptMissing
	}
	if limit <= 0 {
		limit = DefaultLookupLimit
	}
	return &ModelLookup{model: model, prompt: prompt, limit: limit}, nil
}

func (l *ModelLookup) Search(ctx context.Context, query string) ([]contractx.Resource, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: lookup query is empty", contractx.ErrValidation)
	}

	out, err := llmx.Structured[lookupLLMOutput](ctx, l.model, l.prompt, map[string]any{
		"query": query,
		"limit": l.limit,
	})
	if err != nil {
		return nil, err
	}

	resources := make([]contractx.Resource, 0, len(out.Results))
	seen := make(map[string]struct{}, len(out.Results))
	for _, r := range out.Results {
		res, ok := toResource(r)
		if !ok {
			continue
		}
		if _, dup := seen[res.URL]; dup {
			continue
		}
		seen[res.URL] = struct{}{}
		resources = append(resources, res)
		if len(resources) == l.limit {
			break
		}
	}
	return resources, nil
}

func toResource(r lookupResult) (contractx.Resource, bool) {
	title := strings.TrimSpace(r.Title)
	link := strings.TrimSpace(r.URL)
	if title == "" || link == "" {
		return contractx.Resource{}, false
	}
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return contractx.Resource{}, false
	}
	snippet := strings.TrimSpace(r.Snippet)
	if snippet == "" {
		snippet = strings.TrimSpace(r.Description)
	}
	return contractx.Resource{
		Title:       title,
		URL:         link,
		Snippet:     snippet,
		ContentType: strings.ToLower(strings.TrimSpace(r.ContentType)),
	}, true
}
