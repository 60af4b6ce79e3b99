package memory

import "time"

type QuestionType string

const (
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionMultiSelect    QuestionType = "multi_select"
	QuestionNumeric        QuestionType = "numeric"
	QuestionCoding         QuestionType = "coding"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionShortAnswer, QuestionMultipleChoice, QuestionMultiSelect, QuestionNumeric, QuestionCoding:
		return true
	default:
		return false
	}
}

type Question struct {
	Prompt         string       `json:"prompt"`
	ExpectedAnswer string       `json:"expected_answer"`
	Type           QuestionType `json:"type"`
	Choices        []string     `json:"choices,omitempty"`
	// Tolerance overrides the engine epsilon for numeric questions.
	Tolerance *float64 `json:"tolerance,omitempty"`
}

type ItemResult struct {
	Index     int    `json:"index"`
	Correct   bool   `json:"correct"`
	Answered  bool   `json:"answered"`
	Submitted string `json:"submitted,omitempty"`
	Expected  string `json:"expected"`
	Feedback  string `json:"feedback"`
}

type QuizAttempt struct {
	QuizID           string         `json:"quiz_id"`
	Topic            string         `json:"topic"`
	Timestamp        time.Time      `json:"timestamp"`
	Questions        []Question     `json:"questions"`
	SubmittedAnswers map[int]string `json:"submitted_answers,omitempty"`
	Score            *int           `json:"score,omitempty"`
	Graded           bool           `json:"graded"`
	GradedAt         *time.Time     `json:"graded_at,omitempty"`
	Items            []ItemResult   `json:"items,omitempty"`
	// Superseded marks an ungraded attempt replaced by a newer quiz.
	Superseded bool `json:"superseded,omitempty"`
}

func (a QuizAttempt) Clone() QuizAttempt {
	out := a
	out.Questions = make([]Question, len(a.Questions))
	for i, q := range a.Questions {
		q.Choices = append([]string(nil), q.Choices...)
		if q.Tolerance != nil {
			tol := *q.Tolerance
			q.Tolerance = &tol
		}
		out.Questions[i] = q
	}
	if a.SubmittedAnswers != nil {
		out.SubmittedAnswers = make(map[int]string, len(a.SubmittedAnswers))
		for k, v := range a.SubmittedAnswers {
			out.SubmittedAnswers[k] = v
		}
	}
	if a.Score != nil {
		score := *a.Score
		out.Score = &score
	}
	if a.GradedAt != nil {
		at := *a.GradedAt
		out.GradedAt = &at
	}
	out.Items = append([]ItemResult(nil), a.Items...)
	return out
}

// QuizHistory is the append-only list of attempts for one (student, topic).
type QuizHistory []QuizAttempt

func (h QuizHistory) Clone() QuizHistory {
	out := make(QuizHistory, len(h))
	for i, a := range h {
		out[i] = a.Clone()
	}
	return out
}

// LatestGraded returns the chronologically latest graded attempt. Equal
// timestamps resolve to the later entry in the history.
func (h QuizHistory) LatestGraded() (QuizAttempt, bool) {
	var (
		latest QuizAttempt
		found  bool
	)
	for _, a := range h {
		if !a.Graded || a.Score == nil {
			continue
		}
		if !found || !a.Timestamp.Before(latest.Timestamp) {
			latest = a
			found = true
		}
	}
	return latest, found
}

// GradeRecord is the grading outcome written back into an attempt.
type GradeRecord struct {
	QuizID           string         `json:"quiz_id"`
	Score            int            `json:"score"`
	SubmittedAnswers map[int]string `json:"submitted_answers"`
	Items            []ItemResult   `json:"items"`
	GradedAt         time.Time      `json:"graded_at"`
}
