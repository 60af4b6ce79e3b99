package orchestratornode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

// MemoryStore is the slice of memory.Store the turn graph needs.
type MemoryStore interface {
	FetchSnapshot(ctx context.Context, studentID string) (memory.Snapshot, error)
	Apply(ctx context.Context, studentID string, delta memory.Delta) (memory.Snapshot, error)
}

type GraphInput struct {
	Session   statex.SessionState
	StudentID string
	Intent    contractx.Intent
	Payload   contractx.TurnPayload
}

// TurnOutput is the activity output returned to the caller.
type TurnOutput struct {
	Activity statex.Activity `json:"activity"`
	Message  string          `json:"message"`
	Data     any             `json:"data,omitempty"`
}

type GraphOutput struct {
	Output  TurnOutput
	Session statex.SessionState
}

type GraphState struct {
	StudentID string
	Intent    contractx.Intent
	Payload   contractx.TurnPayload
	Now       time.Time

	// Session is a private copy; the caller's value is never touched.
	Session statex.SessionState
	Topic   string

	Snapshot memory.Snapshot
	Activity statex.Activity
	Attempt  *memory.QuizAttempt

	Response activity.Response
	Applied  memory.Snapshot
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	session := in.Session.Clone()
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, err)
	}

	studentID := strings.TrimSpace(in.StudentID)
	if studentID == "" {
		studentID = strings.TrimSpace(session.StudentID)
	}
	if studentID == "" {
		return nil, fmt.Errorf("%w: student id is empty", contractx.ErrValidation)
	}
	if session.StudentID != "" && session.StudentID != studentID {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, statex.ErrStudentMismatch)
	}
	session.StudentID = studentID
	if session.LastActivity == "" {
		session.LastActivity = statex.ActivityIdle
	}

	intent := contractx.Intent(strings.ToLower(strings.TrimSpace(string(in.Intent))))
	if !intent.Valid() {
		return nil, fmt.Errorf("%w: unknown intent %q", contractx.ErrValidation, in.Intent)
	}
	if in.Payload.StudyMinutes < 0 {
		return nil, fmt.Errorf("%w: study minutes must be >= 0", contractx.ErrValidation)
	}

	topic := memory.NormalizeTopic(in.Payload.Topic)
	if topic == "" {
		topic = memory.NormalizeTopic(session.CurrentTopic)
	}

	return &GraphState{
		StudentID: studentID,
		Intent:    intent,
		Payload:   in.Payload,
		Now:       nowFn().UTC(),
		Session:   session,
		Topic:     topic,
	}, nil
}
