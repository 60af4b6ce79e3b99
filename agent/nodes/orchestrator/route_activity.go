package orchestratornode

import (
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
)

func RouteActivity(in *GraphState) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	act, err := Route(RouteInput{
		Session: in.Session,
		Profile: in.Snapshot.Profile,
		Intent:  in.Intent,
		Topic:   in.Topic,
		QuizID:  in.Payload.QuizID,
	})
	if err != nil {
		return nil, err
	}
	in.Activity = act

	if in.Intent == contractx.IntentSubmitAnswers {
		attempt, err := resolvePendingAttempt(in.Snapshot, in.Session.PendingQuiz)
		if err != nil {
			return nil, err
		}
		in.Attempt = attempt
		in.Topic = memory.NormalizeTopic(attempt.Topic)
	}

	log.Debug().
		Str("session_id", in.Session.SessionID).
		Str("student_id", in.StudentID).
		Str("intent", intentName(in.Intent)).
		Str("last_activity", string(in.Session.LastActivity)).
		Str("activity", string(act)).
		Str("topic", in.Topic).
		Msg("orchestrator: routed turn")
	return in, nil
}
