package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/agents/specialist"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	llmx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/llm"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeModel) Generate(context.Context, string, map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *fakeModel) set(reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply, f.err = reply, err
}

type fakeLookup struct{}

func (fakeLookup) Search(context.Context, string) ([]contractx.Resource, error) {
	return []contractx.Resource{{Title: "Khan Academy", URL: "https://www.khanacademy.org"}}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []contractx.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev contractx.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

type harness struct {
	orch      *Orchestrator
	memory    *memory.Store
	assessor  *fakeModel
	explainer *fakeModel
	quiz      *fakeModel
	events    *fakePublisher
}

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

const fiveQuestionQuiz = `{"title":"Fractions","questions":[
	{"prompt":"1/2 of 10","type":"numeric","expected_answer":"5"},
	{"prompt":"bottom number","type":"short_answer","expected_answer":"denominator"},
	{"prompt":"bigger","type":"multiple_choice","choices":["1/3","1/2"],"expected_answer":"B"},
	{"prompt":"top number","type":"short_answer","expected_answer":"numerator"},
	{"prompt":"1/4 as decimal","type":"numeric","expected_answer":"0.25"}
]}`

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		memory:    memory.NewStore(memory.WithClock(func() time.Time { return fixedNow })),
		assessor:  &fakeModel{reply: `{"knowledge_level":"novice","learning_style":"visual","summary":"Let's start."}`},
		explainer: &fakeModel{reply: "A fraction is a part of a whole."},
		quiz:      &fakeModel{reply: fiveQuestionQuiz},
		events:    &fakePublisher{},
	}

	var (
		idMu sync.Mutex
		seq  int
	)
	aggregator := progress.NewAggregator(progress.WithClock(func() time.Time { return fixedNow }))
	registry, err := specialist.NewRegistry(context.Background(), specialist.Deps{
		Models: llmx.ModelSet{
			Assessor:       h.assessor,
			Explainer:      h.explainer,
			QuizGenerator:  h.quiz,
			ResourceFinder: &fakeModel{},
		},
		Lookup:     fakeLookup{},
		Aggregator: aggregator,
		NewQuizID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			seq++
			return fmt.Sprintf("quiz-%d", seq)
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	orch, err := New(h.memory, registry,
		WithAggregator(aggregator),
		WithEventPublisher(h.events),
		WithClock(func() time.Time { return fixedNow }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.orch = orch
	return h
}

func newSession() statex.SessionState {
	return *statex.NewSessionState("session-1", "alice123", fixedNow)
}

func (h *harness) turn(t *testing.T, session statex.SessionState, intent contractx.Intent, payload contractx.TurnPayload) TurnResult {
	t.Helper()
	res, err := h.orch.HandleTurn(context.Background(), TurnRequest{
		Session:   session,
		StudentID: "alice123",
		Intent:    intent,
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("HandleTurn(%q) error = %v", intent, err)
	}
	return res
}

// assessed runs one assessment on fractions and returns the advanced session.
func (h *harness) assessed(t *testing.T) statex.SessionState {
	t.Helper()
	res := h.turn(t, newSession(), contractx.IntentAssess, contractx.TurnPayload{Topic: "Fractions"})
	if res.Output.Activity != statex.ActivityAssess {
		t.Fatalf("expected assess, got %s", res.Output.Activity)
	}
	return res.Session
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error for missing memory store")
	}
	if _, err := New(memory.NewStore(), nil); err == nil {
		t.Fatal("expected error for missing registry")
	}
}

func TestHandleTurnUnsetStyleAlwaysAssesses(t *testing.T) {
	t.Parallel()

	for _, intent := range []contractx.Intent{"", contractx.IntentContinue, contractx.IntentExplain, contractx.IntentQuiz, contractx.IntentFindResources, contractx.IntentReportProgress} {
		h := newHarness(t)
		res := h.turn(t, newSession(), intent, contractx.TurnPayload{Topic: "fractions"})
		if res.Output.Activity != statex.ActivityAssess {
			t.Fatalf("intent %q routed to %s, want assess", intent, res.Output.Activity)
		}
		if h.explainer.calls != 0 || h.quiz.calls != 0 {
			t.Fatalf("intent %q reached a non-assess activity", intent)
		}
	}
}

func TestHandleTurnAssessUpdatesProfileAndSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)

	if session.LastActivity != statex.ActivityAssess || session.CurrentTopic != "fractions" {
		t.Fatalf("unexpected session: %#v", session)
	}
	profile, err := h.memory.Fetch(context.Background(), "alice123")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if profile.LearningStyle != memory.StyleVisual || profile.KnowledgeLevels["fractions"] != memory.LevelNovice {
		t.Fatalf("profile not updated: %#v", profile)
	}

	res := h.turn(t, session, contractx.IntentContinue, contractx.TurnPayload{})
	if res.Output.Activity != statex.ActivityExplain {
		t.Fatalf("assess should continue to explain, got %s", res.Output.Activity)
	}
}

func TestHandleTurnQuizLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)

	issued := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})
	if issued.Output.Activity != statex.ActivityQuiz {
		t.Fatalf("expected quiz, got %s", issued.Output.Activity)
	}
	if !issued.Session.HasPendingQuiz() || issued.Session.PendingQuiz.QuizID != "quiz-1" {
		t.Fatalf("expected pending quiz-1, got %#v", issued.Session.PendingQuiz)
	}
	if strings.Contains(fmt.Sprintf("%+v", issued.Output.Data), "denominator") {
		t.Fatalf("issued quiz leaks its answer key: %+v", issued.Output.Data)
	}

	graded := h.turn(t, issued.Session, contractx.IntentSubmitAnswers, contractx.TurnPayload{
		QuizID:  "quiz-1",
		Answers: map[int]string{0: "5", 1: "denominator", 2: "B", 3: "numerator", 4: "0.5"},
	})
	if graded.Session.HasPendingQuiz() || graded.Session.LastActivity != statex.ActivityIdle {
		t.Fatalf("grading must clear the quiz and return to idle: %#v", graded.Session)
	}

	history, err := h.memory.History(context.Background(), "alice123", "fractions")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 || !history[0].Graded || history[0].Score == nil || *history[0].Score != 80 {
		t.Fatalf("unexpected history: %#v", history)
	}
	profile, _ := h.memory.Fetch(context.Background(), "alice123")
	if !profile.HasCompleted("fractions") {
		t.Fatalf("80 must complete the topic: %#v", profile.CompletedTopics)
	}
	if profile.TotalStudyMinutes != 10 || profile.XP != 2 || profile.Streak != 1 {
		t.Fatalf("unexpected study log: minutes=%d xp=%d streak=%d", profile.TotalStudyMinutes, profile.XP, profile.Streak)
	}
	if profile.Reviews["fractions"].IntervalDays != 1 {
		t.Fatalf("expected a review schedule, got %#v", profile.Reviews)
	}

	if len(h.events.events) != 2 || h.events.events[1].Type != contractx.EventTopicCompleted {
		t.Fatalf("unexpected events: %#v", h.events.events)
	}

	report, err := h.orch.GetProgress(context.Background(), "alice123", "")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if mastery, ok := report.Mastery("fractions"); !ok || mastery != 80 {
		t.Fatalf("expected mastery 80, got %d (%v)", mastery, ok)
	}
}

func TestHandleTurnStaleSubmission(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	issued := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})
	answers := contractx.TurnPayload{QuizID: "quiz-1", Answers: map[int]string{0: "5"}}
	h.turn(t, issued.Session, contractx.IntentSubmitAnswers, answers)

	// Replaying the old session resubmits an attempt that is already graded.
	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{
		Session: issued.Session, StudentID: "alice123", Intent: contractx.IntentSubmitAnswers, Payload: answers,
	})
	if !errors.Is(err, contractx.ErrStaleQuiz) {
		t.Fatalf("expected ErrStaleQuiz, got %v", err)
	}

	_, err = h.orch.HandleTurn(context.Background(), TurnRequest{
		Session: session, StudentID: "alice123", Intent: contractx.IntentSubmitAnswers, Payload: answers,
	})
	if !errors.Is(err, contractx.ErrStaleQuiz) {
		t.Fatalf("submit without pending quiz: expected ErrStaleQuiz, got %v", err)
	}
}

func TestHandleTurnNewQuizReplacesPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	first := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})
	second := h.turn(t, first.Session, contractx.IntentQuiz, contractx.TurnPayload{})
	if second.Session.PendingQuiz.QuizID != "quiz-2" {
		t.Fatalf("expected quiz-2 pending, got %#v", second.Session.PendingQuiz)
	}

	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{
		Session: second.Session, StudentID: "alice123", Intent: contractx.IntentSubmitAnswers,
		Payload: contractx.TurnPayload{QuizID: "quiz-1"},
	})
	if !errors.Is(err, contractx.ErrStaleQuiz) {
		t.Fatalf("submitting the replaced quiz: expected ErrStaleQuiz, got %v", err)
	}
}

func TestHandleTurnReplacedQuizIsStaleFromOldSessionCopy(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	first := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})
	h.turn(t, first.Session, contractx.IntentQuiz, contractx.TurnPayload{})

	// The caller still holds the session that points at quiz-1.
	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{
		Session: first.Session, StudentID: "alice123", Intent: contractx.IntentSubmitAnswers,
		Payload: contractx.TurnPayload{Answers: map[int]string{0: "5", 1: "denominator", 2: "B", 3: "numerator", 4: "0.25"}},
	})
	if !errors.Is(err, contractx.ErrStaleQuiz) {
		t.Fatalf("expected ErrStaleQuiz for the replaced quiz, got %v", err)
	}

	old, err := h.memory.Attempt(context.Background(), "alice123", "quiz-1")
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if old.Graded || !old.Superseded {
		t.Fatalf("quiz-1 must stay ungraded and superseded: %#v", old)
	}
	profile, _ := h.memory.Fetch(context.Background(), "alice123")
	if profile.HasCompleted("fractions") || len(h.events.events) != 0 {
		t.Fatalf("stale submission leaked effects: completed=%v events=%d", profile.CompletedTopics, len(h.events.events))
	}
}

func TestHandleTurnInvalidTransitionKeepsSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	issued := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})
	before := issued.Session.Clone()

	res, err := h.orch.HandleTurn(context.Background(), TurnRequest{
		Session: issued.Session, StudentID: "alice123", Intent: contractx.IntentExplain,
	})
	if !errors.Is(err, contractx.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if res.Session.SessionID != "" {
		t.Fatalf("failed turns return no session, got %#v", res.Session)
	}
	if issued.Session.PendingQuiz == nil || *issued.Session.PendingQuiz != *before.PendingQuiz {
		t.Fatalf("caller session mutated: %#v", issued.Session)
	}
}

func TestHandleTurnUpstreamTimeoutAppliesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	before, _ := h.memory.Fetch(context.Background(), "alice123")

	h.explainer.set("", fmt.Errorf("%w: explainer after 30s", contractx.ErrUpstreamTimeout))
	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{
		Session: session, StudentID: "alice123", Intent: contractx.IntentExplain,
		Payload: contractx.TurnPayload{StudyMinutes: 25, Goals: []string{"algebra"}},
	})
	if !errors.Is(err, contractx.ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}

	after, _ := h.memory.Fetch(context.Background(), "alice123")
	if after.TotalStudyMinutes != before.TotalStudyMinutes || len(after.Goals) != len(before.Goals) {
		t.Fatalf("failed turn must not write memory: before=%#v after=%#v", before, after)
	}
	if session.LastActivity != statex.ActivityAssess {
		t.Fatalf("caller session mutated: %#v", session)
	}
}

func TestHandleTurnLogsStudyTimeAndGoals(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	h.turn(t, session, contractx.IntentExplain, contractx.TurnPayload{StudyMinutes: 25, Goals: []string{"Decimals", "Percentages"}})

	profile, _ := h.memory.Fetch(context.Background(), "alice123")
	if profile.TotalStudyMinutes != 25 || profile.XP != 5 || profile.Streak != 1 || profile.LastStudyDate != "2026-03-02" {
		t.Fatalf("unexpected study log: %#v", profile)
	}
	if len(profile.Goals) != 2 || profile.Goals[0] != "Decimals" {
		t.Fatalf("unexpected goals: %#v", profile.Goals)
	}
}

func TestHandleTurnRejectsBadRequests(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	cases := []TurnRequest{
		{Session: statex.SessionState{}, StudentID: "alice123"},
		{Session: newSession(), StudentID: "bob"},
		{Session: newSession(), StudentID: "alice123", Intent: "dance"},
		{Session: newSession(), StudentID: "alice123", Payload: contractx.TurnPayload{StudyMinutes: -1}},
	}
	for i, req := range cases {
		if _, err := h.orch.HandleTurn(context.Background(), req); !errors.Is(err, contractx.ErrValidation) {
			t.Fatalf("case %d: expected ErrValidation, got %v", i, err)
		}
	}
}

func TestHandleTurnConcurrentSubmissionsGradeOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	issued := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})

	const racers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		stale int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.HandleTurn(context.Background(), TurnRequest{
				Session: issued.Session, StudentID: "alice123", Intent: contractx.IntentSubmitAnswers,
				Payload: contractx.TurnPayload{Answers: map[int]string{0: "5"}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, contractx.ErrStaleQuiz):
				stale++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || stale != racers-1 {
		t.Fatalf("expected exactly one grading, got ok=%d stale=%d", ok, stale)
	}
}

func TestGetProgressNewStudent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	report, err := h.orch.GetProgress(context.Background(), "alice123", "")
	if err != nil {
		t.Fatalf("GetProgress() error = %v", err)
	}
	if len(report.Topics) != 0 || len(report.Suggestions) != 1 || report.Suggestions[0].Text != progress.SuggestStartAssessment {
		t.Fatalf("unexpected report: %#v", report)
	}

	report, err = h.orch.GetProgress(context.Background(), "alice123", "Algebra")
	if err != nil {
		t.Fatalf("GetProgress(topic) error = %v", err)
	}
	if mastery, ok := report.Mastery("algebra"); !ok || mastery != 0 {
		t.Fatalf("expected mastery 0 for algebra, got %d (%v)", mastery, ok)
	}
	if report.Suggestions[0].Text != progress.SuggestStartAssessment {
		t.Fatalf("unexpected suggestion: %#v", report.Suggestions)
	}
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	session := h.assessed(t)
	issued := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})
	h.turn(t, issued.Session, contractx.IntentSubmitAnswers, contractx.TurnPayload{Answers: map[int]string{0: "5"}})

	var buf bytes.Buffer
	if err := h.orch.ExportCSV(context.Background(), "alice123", &buf); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "quiz_history") || !strings.Contains(out, "quiz-1") {
		t.Fatalf("unexpected csv:\n%s", out)
	}
}

func TestPublishFailureDoesNotFailTurn(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.events.err = errors.New("qstash down")
	session := h.assessed(t)
	issued := h.turn(t, session, contractx.IntentQuiz, contractx.TurnPayload{})
	h.turn(t, issued.Session, contractx.IntentSubmitAnswers, contractx.TurnPayload{Answers: map[int]string{0: "5"}})

	if len(h.events.events) == 0 {
		t.Fatal("expected publish attempts")
	}
}
