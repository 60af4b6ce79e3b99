package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

type fakePersister struct {
	mu      sync.Mutex
	records map[string]*Record
	saveErr error
	saves   int
}

func (f *fakePersister) Load(ctx context.Context, studentID string) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[studentID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.clone(), nil
}

func (f *fakePersister) Save(ctx context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.records == nil {
		f.records = map[string]*Record{}
	}
	f.records[rec.Profile.StudentID] = rec.clone()
	return nil
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newAttempt(id string, ts time.Time) QuizAttempt {
	return QuizAttempt{
		QuizID:    id,
		Timestamp: ts,
		Questions: []Question{{Prompt: "2+2?", ExpectedAnswer: "4", Type: QuestionNumeric}},
	}
}

func TestFetchCreatesDefaultProfile(t *testing.T) {
	t.Parallel()

	store := NewStore(WithClock(fixedClock()))
	p, err := store.Fetch(context.Background(), "alice123")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.StudentID != "alice123" {
		t.Fatalf("StudentID = %q", p.StudentID)
	}
	if p.LearningStyle != StyleUnset {
		t.Fatalf("LearningStyle = %q, want unset", p.LearningStyle)
	}
	if p.KnowledgeLevelFor("") != LevelUnset {
		t.Fatalf("knowledge level must start unset")
	}
	if p.IsComplete("") {
		t.Fatal("new profile must not be complete")
	}
	if p.TotalStudyMinutes != 0 || len(p.CompletedTopics) != 0 || len(p.Goals) != 0 {
		t.Fatalf("unexpected non-empty default profile: %#v", p)
	}
}

func TestFetchRejectsEmptyStudent(t *testing.T) {
	t.Parallel()

	_, err := NewStore().Fetch(context.Background(), "  ")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateMergesInsteadOfOverwriting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(WithClock(fixedClock()))
	visual := StyleVisual
	thirty := 30

	if _, err := store.Update(ctx, "s1", ProfilePatch{
		KnowledgeLevels:   map[string]KnowledgeLevel{"Algebra": LevelNovice},
		LearningStyle:     &visual,
		Goals:             []string{"algebra", "geometry"},
		CompletedTopics:   []string{"fractions"},
		TotalStudyMinutes: &thirty,
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	ten := 10
	got, err := store.Update(ctx, "s1", ProfilePatch{
		KnowledgeLevels:   map[string]KnowledgeLevel{"geometry": LevelAdvanced},
		Goals:             []string{"geometry", "calculus"},
		CompletedTopics:   []string{"decimals"},
		TotalStudyMinutes: &ten,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if want := []string{"algebra", "geometry", "calculus"}; !reflect.DeepEqual(got.Goals, want) {
		t.Fatalf("Goals = %v, want %v", got.Goals, want)
	}
	if want := []string{"decimals", "fractions"}; !reflect.DeepEqual(got.CompletedTopics, want) {
		t.Fatalf("CompletedTopics = %v, want %v", got.CompletedTopics, want)
	}
	if got.KnowledgeLevels["algebra"] != LevelNovice || got.KnowledgeLevels["geometry"] != LevelAdvanced {
		t.Fatalf("KnowledgeLevels = %v", got.KnowledgeLevels)
	}
	if got.LearningStyle != StyleVisual {
		t.Fatalf("LearningStyle = %q", got.LearningStyle)
	}
	if got.TotalStudyMinutes != 30 {
		t.Fatalf("TotalStudyMinutes = %d, must never decrease", got.TotalStudyMinutes)
	}

	fetched, err := store.Fetch(ctx, "s1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !reflect.DeepEqual(fetched, got) {
		t.Fatalf("Fetch() after Update differs:\n got %#v\nwant %#v", fetched, got)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(WithClock(fixedClock()))
	verbal := StyleVerbal
	patch := ProfilePatch{
		KnowledgeLevels: map[string]KnowledgeLevel{"physics": LevelIntermediate},
		LearningStyle:   &verbal,
		Goals:           []string{"physics"},
		CompletedTopics: []string{"optics"},
		Badges:          []string{"mastery_optics"},
	}

	first, err := store.Update(ctx, "s2", patch)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	second, err := store.Update(ctx, "s2", patch)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated update changed profile:\n first %#v\nsecond %#v", first, second)
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	bad := LearningStyle("telepathic")
	_, err := NewStore().Update(context.Background(), "s3", ProfilePatch{LearningStyle: &bad})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAppendQuizRequiresExistingProfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	_, err := store.AppendQuiz(ctx, "ghost", "algebra", newAttempt("q1", time.Now()))
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.Fetch(ctx, "ghost"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	history, err := store.AppendQuiz(ctx, "ghost", "Algebra", newAttempt("q1", time.Now()))
	if err != nil {
		t.Fatalf("AppendQuiz() error = %v", err)
	}
	if len(history) != 1 || history[0].Topic != "algebra" {
		t.Fatalf("unexpected history: %#v", history)
	}

	_, err = store.AppendQuiz(ctx, "ghost", "algebra", newAttempt("q1", time.Now()))
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("duplicate quiz id: expected ErrValidation, got %v", err)
	}
}

func TestRecordGradeOnlyOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	if _, err := store.Fetch(ctx, "s4"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if _, err := store.AppendQuiz(ctx, "s4", "algebra", newAttempt("q1", time.Now())); err != nil {
		t.Fatalf("AppendQuiz() error = %v", err)
	}

	grade := GradeRecord{QuizID: "q1", Score: 100, SubmittedAnswers: map[int]string{0: "4"}, GradedAt: time.Now()}
	attempt, err := store.RecordGrade(ctx, "s4", grade)
	if err != nil {
		t.Fatalf("RecordGrade() error = %v", err)
	}
	if !attempt.Graded || attempt.Score == nil || *attempt.Score != 100 {
		t.Fatalf("unexpected graded attempt: %#v", attempt)
	}

	grade.Score = 0
	_, err = store.RecordGrade(ctx, "s4", grade)
	if !errors.Is(err, contractx.ErrAlreadyGraded) {
		t.Fatalf("expected ErrAlreadyGraded, got %v", err)
	}

	stored, err := store.Attempt(ctx, "s4", "q1")
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if *stored.Score != 100 {
		t.Fatalf("score changed after second grade: %d", *stored.Score)
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	if _, err := store.Fetch(ctx, "s5"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	_, err := store.Apply(ctx, "s5", Delta{
		Patch:        ProfilePatch{CompletedTopics: []string{"algebra"}},
		StudyMinutes: 15,
		Grades:       []GradeRecord{{QuizID: "missing", Score: 50}},
	})
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p, err := store.Fetch(ctx, "s5")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(p.CompletedTopics) != 0 || p.TotalStudyMinutes != 0 {
		t.Fatalf("failed Apply leaked partial state: %#v", p)
	}
}

func TestApplyPersistFailureLeavesMemoryUnchanged(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persister := &fakePersister{}
	store := NewStore(WithPersister(persister))
	if _, err := store.Fetch(ctx, "s6"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	persister.saveErr = errors.New("disk full")
	_, err := store.Apply(ctx, "s6", Delta{StudyMinutes: 20})
	if !errors.Is(err, persister.saveErr) {
		t.Fatalf("expected save error, got %v", err)
	}

	persister.saveErr = nil
	p, err := store.Fetch(ctx, "s6")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.TotalStudyMinutes != 0 {
		t.Fatalf("TotalStudyMinutes = %d, want 0", p.TotalStudyMinutes)
	}
}

func TestStoreLoadsFromPersister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persister := &fakePersister{}
	first := NewStore(WithPersister(persister))
	practical := StylePractical
	if _, err := first.Update(ctx, "s7", ProfilePatch{LearningStyle: &practical}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	second := NewStore(WithPersister(persister))
	p, err := second.Fetch(ctx, "s7")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.LearningStyle != StylePractical {
		t.Fatalf("LearningStyle = %q, want practical", p.LearningStyle)
	}
}

func TestConcurrentUpdatesSameStudentMerge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			topic := fmt.Sprintf("topic-%02d", i)
			if _, err := store.Update(ctx, "shared", ProfilePatch{
				CompletedTopics: []string{topic},
				Goals:           []string{topic},
			}); err != nil {
				t.Errorf("Update() error = %v", err)
			}
			if _, err := store.Apply(ctx, "shared", Delta{StudyMinutes: 1}); err != nil {
				t.Errorf("Apply() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	p, err := store.Fetch(ctx, "shared")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(p.CompletedTopics) != n || len(p.Goals) != n {
		t.Fatalf("lost concurrent writes: completed=%d goals=%d", len(p.CompletedTopics), len(p.Goals))
	}
	if p.TotalStudyMinutes != n {
		t.Fatalf("TotalStudyMinutes = %d, want %d", p.TotalStudyMinutes, n)
	}
}

func TestFetchReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore()
	p, err := store.Update(ctx, "s8", ProfilePatch{Goals: []string{"algebra"}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	p.Goals[0] = "mutated"
	p.KnowledgeLevels["x"] = LevelAdvanced

	again, err := store.Fetch(ctx, "s8")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if again.Goals[0] != "algebra" || len(again.KnowledgeLevels) != 0 {
		t.Fatalf("store leaked internal state: %#v", again)
	}
}

func TestLatestGradedUsesTimestamp(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	score := func(v int) *int { return &v }
	h := QuizHistory{
		{QuizID: "late", Timestamp: base.Add(2 * time.Hour), Graded: true, Score: score(40)},
		{QuizID: "early", Timestamp: base, Graded: true, Score: score(90)},
		{QuizID: "pending", Timestamp: base.Add(3 * time.Hour)},
	}
	got, ok := h.LatestGraded()
	if !ok || got.QuizID != "late" {
		t.Fatalf("LatestGraded() = %v, %v; want late", got.QuizID, ok)
	}
}

func TestApplyCreditsStudyFromStoredRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(WithClock(fixedClock()))
	if _, err := store.Update(ctx, "s8", ProfilePatch{}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	yesterday := time.Date(2026, 2, 28, 20, 0, 0, 0, time.UTC)
	if _, err := store.Apply(ctx, "s8", Delta{StudyMinutes: 10, StudiedAt: yesterday}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Apply(ctx, "s8", Delta{StudyMinutes: 10}); err != nil {
				t.Errorf("Apply() error = %v", err)
			}
		}()
	}
	wg.Wait()

	p, err := store.Fetch(ctx, "s8")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.XP != 2*(n+1) || p.TotalStudyMinutes != 10*(n+1) {
		t.Fatalf("concurrent awards were lost: xp=%d minutes=%d", p.XP, p.TotalStudyMinutes)
	}
	if p.Streak != 2 || p.LastStudyDate != "2026-03-01" {
		t.Fatalf("streak = %d date = %q, want 2 on 2026-03-01", p.Streak, p.LastStudyDate)
	}
}

func TestGradesAdvanceStoredReviewSchedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(WithClock(fixedClock()))
	if _, err := store.Fetch(ctx, "s9"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"q1", "q2"} {
		if _, err := store.AppendQuiz(ctx, "s9", "Algebra", newAttempt(id, at)); err != nil {
			t.Fatalf("AppendQuiz(%s) error = %v", id, err)
		}
	}

	// Both grades read the same stale profile upstream; the store still
	// chains the schedule.
	for _, id := range []string{"q1", "q2"} {
		if _, err := store.Apply(ctx, "s9", Delta{Grades: []GradeRecord{{QuizID: id, Score: 100, GradedAt: at}}}); err != nil {
			t.Fatalf("Apply(%s) error = %v", id, err)
		}
	}

	p, err := store.Fetch(ctx, "s9")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if sched := p.Reviews["algebra"]; sched.Repetitions != 2 || sched.IntervalDays != 6 {
		t.Fatalf("unexpected review schedule %#v", sched)
	}
}

func TestSupersededAttemptCannotBeGraded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewStore(WithClock(fixedClock()))
	if _, err := store.Fetch(ctx, "s10"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := store.AppendQuiz(ctx, "s10", "algebra", newAttempt("q1", at)); err != nil {
		t.Fatalf("AppendQuiz() error = %v", err)
	}

	_, err := store.Apply(ctx, "s10", Delta{
		Supersede:   []string{"q1", "unknown"},
		NewAttempts: []NewAttempt{{Topic: "algebra", Attempt: newAttempt("q2", at)}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	old, err := store.Attempt(ctx, "s10", "q1")
	if err != nil {
		t.Fatalf("Attempt() error = %v", err)
	}
	if !old.Superseded || old.Graded {
		t.Fatalf("q1 should be superseded and ungraded: %#v", old)
	}

	_, err = store.Apply(ctx, "s10", Delta{
		StudyMinutes: 5,
		Grades:       []GradeRecord{{QuizID: "q1", Score: 100, GradedAt: at}},
	})
	if !errors.Is(err, contractx.ErrStaleQuiz) {
		t.Fatalf("expected ErrStaleQuiz, got %v", err)
	}
	p, err := store.Fetch(ctx, "s10")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.TotalStudyMinutes != 0 || len(p.Reviews) != 0 {
		t.Fatalf("rejected grade leaked state: %#v", p)
	}
}
