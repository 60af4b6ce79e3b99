package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

type RouteInput struct {
	Session statex.SessionState
	Profile memory.StudentProfile
	Intent  contractx.Intent
	// Topic is the effective topic of the turn.
	Topic  string
	QuizID string
}

// Route picks the activity for one turn. Pending quizzes are handled first,
// then stale submissions, then the assessment gate, then intents.
func Route(in RouteInput) (statex.Activity, error) {
	if in.Session.HasPendingQuiz() {
		pending := in.Session.PendingQuiz
		switch in.Intent {
		case contractx.IntentSubmitAnswers:
			if id := strings.TrimSpace(in.QuizID); id != "" && id != pending.QuizID {
				return "", fmt.Errorf("%w: quiz=%s is not the pending quiz", contractx.ErrStaleQuiz, id)
			}
			return statex.ActivityQuiz, nil
		case contractx.IntentQuiz:
			if !in.Profile.IsComplete(in.Topic) {
				return statex.ActivityAssess, nil
			}
			return statex.ActivityQuiz, nil
		default:
			return "", fmt.Errorf("%w: intent %q while quiz=%s is pending", contractx.ErrInvalidTransition, intentName(in.Intent), pending.QuizID)
		}
	}

	if in.Intent == contractx.IntentSubmitAnswers {
		return "", fmt.Errorf("%w: no quiz is pending", contractx.ErrStaleQuiz)
	}

	if !in.Profile.IsComplete(in.Topic) {
		return statex.ActivityAssess, nil
	}

	switch in.Intent {
	case contractx.IntentAssess:
		return statex.ActivityAssess, nil
	case contractx.IntentExplain:
		return statex.ActivityExplain, nil
	case contractx.IntentQuiz:
		return statex.ActivityQuiz, nil
	case contractx.IntentFindResources:
		return statex.ActivityFindResources, nil
	case contractx.IntentReportProgress:
		return statex.ActivityReportProgress, nil
	default:
		return nextInWorkflow(in.Session.LastActivity), nil
	}
}

// nextInWorkflow is the default step after last.
func nextInWorkflow(last statex.Activity) statex.Activity {
	switch last {
	case statex.ActivityExplain:
		return statex.ActivityQuiz
	case statex.ActivityQuiz:
		return statex.ActivityFindResources
	case statex.ActivityFindResources:
		return statex.ActivityReportProgress
	default:
		return statex.ActivityExplain
	}
}

// resolvePendingAttempt finds the pending attempt in the snapshot. A missing,
// graded or replaced attempt makes the submission stale.
func resolvePendingAttempt(snap memory.Snapshot, pending *statex.PendingQuiz) (*memory.QuizAttempt, error) {
	if pending == nil {
		return nil, fmt.Errorf("%w: no quiz is pending", contractx.ErrStaleQuiz)
	}
	if attempt, ok := findAttempt(snap.History[memory.NormalizeTopic(pending.Topic)], pending.QuizID); ok {
		return checkUngraded(attempt)
	}
	for _, history := range snap.History {
		if attempt, ok := findAttempt(history, pending.QuizID); ok {
			return checkUngraded(attempt)
		}
	}
	return nil, fmt.Errorf("%w: quiz=%s is unknown", contractx.ErrStaleQuiz, pending.QuizID)
}

func findAttempt(history memory.QuizHistory, quizID string) (memory.QuizAttempt, bool) {
	for _, a := range history {
		if a.QuizID == quizID {
			return a, true
		}
	}
	return memory.QuizAttempt{}, false
}

func checkUngraded(a memory.QuizAttempt) (*memory.QuizAttempt, error) {
	switch {
	case a.Graded:
		return nil, fmt.Errorf("%w: quiz=%s was already graded", contractx.ErrStaleQuiz, a.QuizID)
	case a.Superseded:
		return nil, fmt.Errorf("%w: quiz=%s was replaced by a newer quiz", contractx.ErrStaleQuiz, a.QuizID)
	}
	out := a.Clone()
	return &out, nil
}

func intentName(i contractx.Intent) string {
	if i == "" {
		return string(contractx.IntentContinue)
	}
	return string(i)
}
