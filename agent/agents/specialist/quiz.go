package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/grading"
	llmx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/llm"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

type quizActivity struct {
	model      contractx.LanguageModel
	prompt     string
	engine     *grading.Engine
	aggregator *progress.Aggregator
	size       int
	newID      func() string

	runner compose.Runnable[activity.Request, activity.Response]
}

type quizLLMOutput struct {
	Title     string            `json:"title"`
	Questions []quizLLMQuestion `json:"questions"`
}

type quizLLMQuestion struct {
	Prompt         string   `json:"prompt"`
	Type           string   `json:"type"`
	Choices        []string `json:"choices"`
	ExpectedAnswer any      `json:"expected_answer"`
	Tolerance      *float64 `json:"tolerance"`
}

// QuizView is an issued quiz without its answer key.
type QuizView struct {
	QuizID    string         `json:"quiz_id"`
	Topic     string         `json:"topic"`
	Title     string         `json:"title,omitempty"`
	Questions []QuestionView `json:"questions"`
}

type QuestionView struct {
	Index   int                 `json:"index"`
	Prompt  string              `json:"prompt"`
	Type    memory.QuestionType `json:"type"`
	Choices []string            `json:"choices,omitempty"`
}

func newQuizActivity(ctx context.Context, deps Deps) (*quizActivity, error) {
	q := &quizActivity{
		model:      deps.Models.QuizGenerator,
		prompt:     deps.Prompts.QuizGenerator,
		engine:     deps.Engine,
		aggregator: deps.Aggregator,
		size:       deps.QuizSize,
		newID:      deps.NewQuizID,
	}
	runner, err := compileQuizGraph(ctx, q.generate, q.grade)
	if err != nil {
		return nil, fmt.Errorf("%w: compile quiz graph: %v", contractx.ErrModelInvoke, err)
	}
	q.runner = runner
	return q, nil
}

func (q *quizActivity) Run(ctx context.Context, req activity.Request) (activity.Response, error) {
	return q.runner.Invoke(ctx, req)
}

func (q *quizActivity) generate(ctx context.Context, req activity.Request) (activity.Response, error) {
	profile := req.Profile()
	report := q.aggregator.Compute(profile, req.Snapshot.History, "")

	out, err := llmx.Structured[quizLLMOutput](ctx, q.model, q.prompt, map[string]any{
		"topic":           req.Topic,
		"knowledge_level": profile.KnowledgeLevelFor(req.Topic),
		"learning_style":  profile.LearningStyle,
		"question_count":  q.size,
		"weak_areas":      report.WeakAreas,
	})
	if err != nil {
		return activity.Response{}, err
	}

	questions := toQuestions(out.Questions)
	if len(questions) == 0 {
		return activity.Response{}, fmt.Errorf("%w: quiz has no questions", contractx.ErrSchemaViolation)
	}
	if len(questions) > q.size {
		questions = questions[:q.size]
	}

	attempt := memory.QuizAttempt{
		QuizID:    q.newID(),
		Topic:     req.Topic,
		Timestamp: req.Now.UTC(),
		Questions: questions,
	}
	if _, err := q.engine.Evaluate(attempt); err != nil {
		if errors.Is(err, contractx.ErrMalformedAttempt) {
			return activity.Response{}, fmt.Errorf("%w: generated quiz: %v", contractx.ErrSchemaViolation, err)
		}
		return activity.Response{}, err
	}

	delta := memory.Delta{
		NewAttempts: []memory.NewAttempt{{Topic: req.Topic, Attempt: attempt}},
	}
	if req.Session.HasPendingQuiz() {
		delta.Supersede = []string{req.Session.PendingQuiz.QuizID}
	}

	view := viewOf(attempt, strings.TrimSpace(out.Title))
	return activity.Response{
		Activity:   statex.ActivityQuiz,
		Message:    fmt.Sprintf("Here is a %d-question quiz on %s. Submit your answers by question index.", len(questions), req.Topic),
		Data:       view,
		Delta:      delta,
		IssuedQuiz: &attempt,
	}, nil
}

func (q *quizActivity) grade(ctx context.Context, req activity.Request) (activity.Response, error) {
	attempt := req.Attempt.Clone()
	attempt.SubmittedAnswers = req.Payload.Answers

	res, err := q.engine.Grade(&attempt)
	if err != nil {
		return activity.Response{}, err
	}

	profile := req.Profile()
	topic := memory.NormalizeTopic(attempt.Topic)

	delta := memory.Delta{
		StudyMinutes: progress.QuizStudyMinutes(len(attempt.Questions)),
		StudiedAt:    req.Now,
		Grades:       []memory.GradeRecord{res.Record(req.Payload.Answers)},
	}
	if res.Score >= progress.BadgeScore {
		delta.Patch.Badges = []string{progress.MasteryBadge(topic)}
	}
	if res.MarkCompleted {
		delta.Patch.CompletedTopics = []string{topic}
	}

	events := []contractx.Event{{
		Type:      contractx.EventQuizGraded,
		StudentID: req.StudentID,
		Topic:     topic,
		QuizID:    res.QuizID,
		Score:     res.Score,
		Attributes: map[string]any{
			"correct": res.Correct,
			"total":   res.Total,
		},
		OccurredAt: res.GradedAt,
	}}
	if res.MarkCompleted && !profile.HasCompleted(topic) {
		events = append(events, contractx.Event{
			Type:       contractx.EventTopicCompleted,
			StudentID:  req.StudentID,
			Topic:      topic,
			QuizID:     res.QuizID,
			Score:      res.Score,
			OccurredAt: res.GradedAt,
		})
	}

	message := fmt.Sprintf("You scored %d%% (%d/%d) on %s.", res.Score, res.Correct, res.Total, topic)
	if res.MarkCompleted {
		message += " Topic mastered!"
	}

	return activity.Response{
		Activity: statex.ActivityQuiz,
		Message:  message,
		Data:     res,
		Delta:    delta,
		Graded:   &res,
		Events:   events,
	}, nil
}

func toQuestions(in []quizLLMQuestion) []memory.Question {
	out := make([]memory.Question, 0, len(in))
	for _, q := range in {
		prompt := strings.TrimSpace(q.Prompt)
		if prompt == "" {
			continue
		}
		qt := memory.QuestionType(strings.ToLower(strings.TrimSpace(q.Type)))
		if qt == "" {
			qt = memory.QuestionShortAnswer
		}
		out = append(out, memory.Question{
			Prompt:         prompt,
			Type:           qt,
			Choices:        cleanList(q.Choices),
			ExpectedAnswer: answerString(q.ExpectedAnswer),
			Tolerance:      q.Tolerance,
		})
	}
	return out
}

// answerString accepts the answer key as a string, number or list.
func answerString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := answerString(p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func viewOf(a memory.QuizAttempt, title string) QuizView {
	view := QuizView{
		QuizID:    a.QuizID,
		Topic:     a.Topic,
		Title:     title,
		Questions: make([]QuestionView, len(a.Questions)),
	}
	for i, q := range a.Questions {
		view.Questions[i] = QuestionView{
			Index:   i,
			Prompt:  q.Prompt,
			Type:    q.Type,
			Choices: append([]string(nil), q.Choices...),
		}
	}
	return view
}
