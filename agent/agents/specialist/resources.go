package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

type resourceActivity struct {
	lookup contractx.Lookup
	limit  int
}

type ResourceList struct {
	Query     string               `json:"query"`
	Resources []contractx.Resource `json:"resources"`
}

func (r *resourceActivity) Run(ctx context.Context, req activity.Request) (activity.Response, error) {
	query := strings.TrimSpace(strings.Join([]string{req.Topic, strings.TrimSpace(req.Payload.Message)}, " "))
	if query == "" {
		return activity.Response{}, fmt.Errorf("%w: resource search needs a topic or a message", contractx.ErrValidation)
	}

	found, err := r.lookup.Search(ctx, query)
	if err != nil {
		return activity.Response{}, err
	}
	if len(found) > r.limit {
		found = found[:r.limit]
	}

	var b strings.Builder
	if len(found) == 0 {
		fmt.Fprintf(&b, "I could not find resources for %q.", query)
	} else {
		fmt.Fprintf(&b, "Resources for %s:", query)
		for i, res := range found {
			fmt.Fprintf(&b, "\n%d. %s (%s)", i+1, res.Title, res.URL)
		}
	}

	return activity.Response{
		Activity: statex.ActivityFindResources,
		Message:  b.String(),
		Data:     ResourceList{Query: query, Resources: found},
	}, nil
}
