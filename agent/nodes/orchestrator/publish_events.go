package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

// PublishEvents is best effort: failures are logged and never fail the turn.
func PublishEvents(ctx context.Context, in *GraphState, pub contractx.EventPublisher) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if pub == nil {
		return in, nil
	}
	for _, ev := range in.Response.Events {
		if err := pub.Publish(ctx, ev); err != nil {
			log.Ctx(ctx).Warn().
				Err(err).
				Str("student_id", in.StudentID).
				Str("event", string(ev.Type)).
				Str("quiz_id", ev.QuizID).
				Msg("orchestrator: publish event failed")
		}
	}
	return in, nil
}
