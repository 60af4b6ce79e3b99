package grading

import (
	"fmt"
	"math"
	"strings"
	"time"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
)

const (
	DefaultMasteryThreshold = 80
	DefaultNumericEpsilon   = 1e-6
)

type Option func(*Engine)

func WithMasteryThreshold(threshold int) Option {
	return func(e *Engine) {
		if threshold >= 0 && threshold <= 100 {
			e.masteryThreshold = threshold
		}
	}
}

func WithNumericEpsilon(epsilon float64) Option {
	return func(e *Engine) {
		if epsilon >= 0 {
			e.epsilon = epsilon
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine scores quiz attempts. It holds no per-attempt state.
type Engine struct {
	masteryThreshold int
	epsilon          float64
	now              func() time.Time
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		masteryThreshold: DefaultMasteryThreshold,
		epsilon:          DefaultNumericEpsilon,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Engine) MasteryThreshold() int { return e.masteryThreshold }

type GradedResult struct {
	QuizID  string              `json:"quiz_id"`
	Topic   string              `json:"topic"`
	Score   int                 `json:"score"`
	Correct int                 `json:"correct"`
	Total   int                 `json:"total"`
	Items   []memory.ItemResult `json:"items"`
	// MarkCompleted is set when Score reaches the mastery threshold.
	MarkCompleted bool      `json:"mark_completed"`
	GradedAt      time.Time `json:"graded_at"`
}

// Record converts the result into the memory write-back for the attempt.
func (r GradedResult) Record(answers map[int]string) memory.GradeRecord {
	copied := make(map[int]string, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	return memory.GradeRecord{
		QuizID:           r.QuizID,
		Score:            r.Score,
		SubmittedAnswers: copied,
		Items:            append([]memory.ItemResult(nil), r.Items...),
		GradedAt:         r.GradedAt,
	}
}

// Grade scores attempt and marks it graded. Grading an already graded
// attempt fails with ErrAlreadyGraded and leaves it untouched.
func (e *Engine) Grade(attempt *memory.QuizAttempt) (GradedResult, error) {
	if attempt == nil {
		return GradedResult{}, fmt.Errorf("%w: attempt is nil", contractx.ErrMalformedAttempt)
	}
	if attempt.Graded {
		return GradedResult{}, fmt.Errorf("%w: quiz=%s", contractx.ErrAlreadyGraded, attempt.QuizID)
	}

	res, err := e.Evaluate(*attempt)
	if err != nil {
		return GradedResult{}, err
	}

	score := res.Score
	gradedAt := res.GradedAt
	attempt.Score = &score
	attempt.Graded = true
	attempt.GradedAt = &gradedAt
	attempt.Items = append([]memory.ItemResult(nil), res.Items...)
	return res, nil
}

// Evaluate computes the result Grade would produce without the graded guard
// and without touching attempt.
func (e *Engine) Evaluate(attempt memory.QuizAttempt) (GradedResult, error) {
	if err := validateAttempt(attempt); err != nil {
		return GradedResult{}, err
	}

	total := len(attempt.Questions)
	items := make([]memory.ItemResult, total)
	correct := 0
	for i, q := range attempt.Questions {
		submitted, answered := attempt.SubmittedAnswers[i]
		answered = answered && strings.TrimSpace(submitted) != ""
		item := memory.ItemResult{
			Index:     i,
			Answered:  answered,
			Submitted: submitted,
			Expected:  q.ExpectedAnswer,
		}
		if !answered {
			item.Feedback = "No answer provided."
		} else {
			item.Correct, item.Feedback = e.compare(q, submitted)
		}
		if item.Correct {
			correct++
		}
		items[i] = item
	}

	score := int(math.Round(float64(correct) / float64(total) * 100))
	return GradedResult{
		QuizID:        attempt.QuizID,
		Topic:         attempt.Topic,
		Score:         score,
		Correct:       correct,
		Total:         total,
		Items:         items,
		MarkCompleted: score >= e.masteryThreshold,
		GradedAt:      e.now().UTC(),
	}, nil
}

func validateAttempt(attempt memory.QuizAttempt) error {
	if len(attempt.Questions) == 0 {
		return fmt.Errorf("%w: quiz=%s has no questions", contractx.ErrMalformedAttempt, attempt.QuizID)
	}
	for i, q := range attempt.Questions {
		qt := questionType(q)
		if !qt.Valid() {
			return fmt.Errorf("%w: question %d has unknown type %q", contractx.ErrMalformedAttempt, i, q.Type)
		}
		if qt != memory.QuestionCoding && strings.TrimSpace(q.ExpectedAnswer) == "" {
			return fmt.Errorf("%w: question %d has no answer key", contractx.ErrMalformedAttempt, i)
		}
		if qt == memory.QuestionNumeric {
			if _, err := ParseNumeric(q.ExpectedAnswer); err != nil {
				return fmt.Errorf("%w: question %d answer key is not numeric: %v", contractx.ErrMalformedAttempt, i, err)
			}
		}
	}
	for idx := range attempt.SubmittedAnswers {
		if idx < 0 || idx >= len(attempt.Questions) {
			return fmt.Errorf("%w: answer index %d out of range [0,%d)", contractx.ErrMalformedAttempt, idx, len(attempt.Questions))
		}
	}
	return nil
}

func questionType(q memory.Question) memory.QuestionType {
	if q.Type == "" {
		return memory.QuestionShortAnswer
	}
	return memory.QuestionType(strings.ToLower(string(q.Type)))
}
