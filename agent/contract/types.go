package contract

import "time"

type AgentType string

const (
	AgentTypeAssessor       AgentType = "assessor"
	AgentTypeExplainer      AgentType = "explainer"
	AgentTypeQuizGenerator  AgentType = "quiz_generator"
	AgentTypeResourceFinder AgentType = "resource_finder"
)

// Intent is the externally classified purpose of a turn.
type Intent string

const (
	IntentContinue       Intent = "continue"
	IntentAssess         Intent = "assess"
	IntentExplain        Intent = "explain"
	IntentQuiz           Intent = "quiz"
	IntentSubmitAnswers  Intent = "submit_answers"
	IntentFindResources  Intent = "find_resources"
	IntentReportProgress Intent = "report_progress"
)

func (i Intent) Valid() bool {
	switch i {
	case "", IntentContinue, IntentAssess, IntentExplain, IntentQuiz,
		IntentSubmitAnswers, IntentFindResources, IntentReportProgress:
		return true
	default:
		return false
	}
}

// TurnPayload carries the turn data next to the intent.
type TurnPayload struct {
	Topic        string         `json:"topic,omitempty"`
	Message      string         `json:"message,omitempty"`
	QuizID       string         `json:"quiz_id,omitempty"`
	Answers      map[int]string `json:"answers,omitempty"`
	StudyMinutes int            `json:"study_minutes,omitempty"`
	Goals        []string       `json:"goals,omitempty"`
}

type Resource struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	ContentType string `json:"content_type,omitempty"`
}

type EventType string

const (
	EventQuizGraded     EventType = "quiz.graded"
	EventTopicCompleted EventType = "topic.completed"
)

type Event struct {
	Type       EventType      `json:"type"`
	StudentID  string         `json:"student_id"`
	Topic      string         `json:"topic"`
	QuizID     string         `json:"quiz_id,omitempty"`
	Score      int            `json:"score,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
