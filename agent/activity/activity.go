package activity

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/grading"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

// Request is everything an activity may read for one turn. Activities never
// write memory or session state themselves; they describe changes in Response.
type Request struct {
	Activity  statex.Activity
	StudentID string
	// Topic is the normalized effective topic of the turn, possibly empty.
	Topic   string
	Intent  contractx.Intent
	Payload contractx.TurnPayload

	Snapshot memory.Snapshot
	Session  statex.SessionState
	// Attempt is the pending attempt being submitted, set only on the grade path.
	Attempt *memory.QuizAttempt

	Now time.Time
}

func (r Request) Profile() memory.StudentProfile {
	return r.Snapshot.Profile
}

type Response struct {
	Activity statex.Activity `json:"activity"`
	Message  string          `json:"message"`
	Data     any             `json:"data,omitempty"`

	// Delta is merged into the student record only after Run succeeded.
	Delta memory.Delta `json:"-"`

	IssuedQuiz *memory.QuizAttempt   `json:"-"`
	Graded     *grading.GradedResult `json:"-"`
	Events     []contractx.Event     `json:"-"`
}

type Activity interface {
	Run(ctx context.Context, req Request) (Response, error)
}

// Registry hands out one Activity per routable session activity.
type Registry interface {
	Assessor() Activity
	Explainer() Activity
	Quiz() Activity
	ResourceFinder() Activity
	Reporter() Activity
}

// For resolves the Activity serving a.
func For(r Registry, a statex.Activity) (Activity, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: activity registry is nil", contractx.ErrValidation)
	}
	var out Activity
	switch a {
	case statex.ActivityAssess:
		out = r.Assessor()
	case statex.ActivityExplain:
		out = r.Explainer()
	case statex.ActivityQuiz:
		out = r.Quiz()
	case statex.ActivityFindResources:
		out = r.ResourceFinder()
	case statex.ActivityReportProgress:
		out = r.Reporter()
	default:
		return nil, fmt.Errorf("%w: no activity serves %q", contractx.ErrValidation, a)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: activity %q is not configured", contractx.ErrValidation, a)
	}
	return out, nil
}

// Func adapts a function to Activity.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Run(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
