package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Activity is one step of the tutoring workflow.
type Activity string

const (
	ActivityIdle           Activity = "idle"
	ActivityAssess         Activity = "assess"
	ActivityExplain        Activity = "explain"
	ActivityQuiz           Activity = "quiz"
	ActivityFindResources  Activity = "find_resources"
	ActivityReportProgress Activity = "report_progress"
)

func (a Activity) Valid() bool {
	switch a {
	case ActivityIdle, ActivityAssess, ActivityExplain, ActivityQuiz, ActivityFindResources, ActivityReportProgress:
		return true
	default:
		return false
	}
}

// PendingQuiz points at an ungraded attempt in the memory store.
type PendingQuiz struct {
	QuizID   string    `json:"quiz_id"`
	Topic    string    `json:"topic"`
	IssuedAt time.Time `json:"issued_at"`
}

// SessionState is the per-conversation routing state. It references memory
// entities by key only.
type SessionState struct {
	SessionID    string       `json:"session_id"`
	StudentID    string       `json:"student_id"`
	CurrentTopic string       `json:"current_topic,omitempty"`
	LastActivity Activity     `json:"last_activity"`
	PendingQuiz  *PendingQuiz `json:"pending_quiz,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNilSessionState = errors.New("session state is nil")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrStudentMismatch = errors.New("session belongs to another student")
)

func NewSessionState(sessionID, studentID string, now time.Time) *SessionState {
	return &SessionState{
		SessionID:    sessionID,
		StudentID:    studentID,
		LastActivity: ActivityIdle,
		StartedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Clone returns a deep copy.
func (s SessionState) Clone() SessionState {
	if s.PendingQuiz != nil {
		pq := *s.PendingQuiz
		s.PendingQuiz = &pq
	}
	return s
}

func (s *SessionState) HasPendingQuiz() bool {
	return s != nil && s.PendingQuiz != nil && s.PendingQuiz.QuizID != ""
}

// BeginQuiz records a freshly issued quiz, replacing any pending one.
func (s *SessionState) BeginQuiz(quizID, topic string, now time.Time) {
	s.PendingQuiz = &PendingQuiz{QuizID: quizID, Topic: topic, IssuedAt: now.UTC()}
	s.LastActivity = ActivityQuiz
	s.Touch(now)
}

// ClearPendingQuiz ends the quiz sub-state and returns to idle.
func (s *SessionState) ClearPendingQuiz(now time.Time) {
	s.PendingQuiz = nil
	s.LastActivity = ActivityIdle
	s.Touch(now)
}

func (s *SessionState) Validate() error {
	if s == nil {
		return ErrNilSessionState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.LastActivity != "" && !s.LastActivity.Valid() {
		return fmt.Errorf("unknown last_activity %q", s.LastActivity)
	}
	if s.PendingQuiz != nil && strings.TrimSpace(s.PendingQuiz.QuizID) == "" {
		return errors.New("pending quiz must have a quiz id")
	}
	return nil
}
