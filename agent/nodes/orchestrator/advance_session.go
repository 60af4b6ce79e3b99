package orchestratornode

import (
	"fmt"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

// AdvanceSession moves the private session copy to its post-turn state.
func AdvanceSession(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	next := in.Session.Clone()
	if in.Topic != "" {
		next.CurrentTopic = in.Topic
	}

	switch {
	case in.Response.IssuedQuiz != nil:
		next.BeginQuiz(in.Response.IssuedQuiz.QuizID, in.Response.IssuedQuiz.Topic, in.Now)
	case in.Response.Graded != nil:
		next.ClearPendingQuiz(in.Now)
	default:
		next.LastActivity = in.Activity
		next.Touch(in.Now)
	}

	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: advanced session: %w", contractx.ErrValidation, err)
	}
	in.Session = next
	return in, nil
}
