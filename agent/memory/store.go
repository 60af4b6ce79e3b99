package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

var (
	ErrInvalidStudent = errors.New("student id is empty")
	ErrNilRecord      = errors.New("student record is nil")
	ErrRecordNotFound = errors.New("student record not found")
)

// Record is the persisted layout of one student.
type Record struct {
	Profile     *StudentProfile        `json:"profile"`
	QuizHistory map[string]QuizHistory `json:"quiz_history"`
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		Profile:     r.Profile.Clone(),
		QuizHistory: make(map[string]QuizHistory, len(r.QuizHistory)),
	}
	for topic, h := range r.QuizHistory {
		out.QuizHistory[topic] = h.Clone()
	}
	return out
}

func (r *Record) normalize() error {
	if r == nil || r.Profile == nil {
		return ErrNilRecord
	}
	if strings.TrimSpace(r.Profile.StudentID) == "" {
		return ErrInvalidStudent
	}
	r.Profile.ensureMaps()
	if r.QuizHistory == nil {
		r.QuizHistory = make(map[string]QuizHistory, 4)
	}
	return nil
}

func (r *Record) findAttempt(quizID string) (string, int, bool) {
	for topic, h := range r.QuizHistory {
		for i := range h {
			if h[i].QuizID == quizID {
				return topic, i, true
			}
		}
	}
	return "", 0, false
}

// Persister is an optional durable backend behind the Store.
type Persister interface {
	Load(ctx context.Context, studentID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
}

// Snapshot is a read-only copy of a student's memory.
type Snapshot struct {
	Profile StudentProfile         `json:"profile"`
	History map[string]QuizHistory `json:"quiz_history"`
}

type StoreOption func(*Store)

func WithPersister(p Persister) StoreOption {
	return func(s *Store) {
		s.persister = p
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store owns every StudentProfile and QuizHistory. Each student has its own
// arena and lock; the outer mutex only guards the arena map.
type Store struct {
	mu     sync.Mutex
	arenas map[string]*arena

	persister Persister
	now       func() time.Time
}

type arena struct {
	mu     sync.Mutex
	rec    *Record
	loaded bool
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		arenas: make(map[string]*arena, 64),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Fetch returns the profile, creating a default one on first reference.
func (s *Store) Fetch(ctx context.Context, studentID string) (StudentProfile, error) {
	var out StudentProfile
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if err := s.ensureRecord(ctx, a, studentID); err != nil {
			return err
		}
		out = *a.rec.Profile.Clone()
		return nil
	})
	return out, err
}

// FetchSnapshot is Fetch plus every quiz history, read under one lock.
func (s *Store) FetchSnapshot(ctx context.Context, studentID string) (Snapshot, error) {
	var out Snapshot
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if err := s.ensureRecord(ctx, a, studentID); err != nil {
			return err
		}
		out = snapshotOf(a.rec)
		return nil
	})
	return out, err
}

// Update merges patch into the profile and returns the result.
func (s *Store) Update(ctx context.Context, studentID string, patch ProfilePatch) (StudentProfile, error) {
	if err := validatePatch(patch); err != nil {
		return StudentProfile{}, err
	}
	var out StudentProfile
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if err := s.ensureRecord(ctx, a, studentID); err != nil {
			return err
		}
		next := a.rec.clone()
		applyPatch(next.Profile, patch, s.now())
		if err := s.commit(ctx, a, next); err != nil {
			return err
		}
		out = *next.Profile.Clone()
		return nil
	})
	return out, err
}

// AppendQuiz adds one attempt to the (student, topic) history. The profile
// must already exist.
func (s *Store) AppendQuiz(ctx context.Context, studentID, topic string, attempt QuizAttempt) (QuizHistory, error) {
	var out QuizHistory
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if a.rec == nil {
			return fmt.Errorf("%w: student=%s", contractx.ErrNotFound, studentID)
		}
		next := a.rec.clone()
		key, err := appendAttempt(next, topic, attempt)
		if err != nil {
			return err
		}
		next.Profile.UpdatedAt = s.now().UTC()
		if err := s.commit(ctx, a, next); err != nil {
			return err
		}
		out = next.QuizHistory[key].Clone()
		return nil
	})
	return out, err
}

// History returns the attempts for one topic (empty when none).
func (s *Store) History(ctx context.Context, studentID, topic string) (QuizHistory, error) {
	var out QuizHistory
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if a.rec == nil {
			return fmt.Errorf("%w: student=%s", contractx.ErrNotFound, studentID)
		}
		out = a.rec.QuizHistory[NormalizeTopic(topic)].Clone()
		return nil
	})
	return out, err
}

// Attempt looks up a quiz attempt by id across all topics.
func (s *Store) Attempt(ctx context.Context, studentID, quizID string) (QuizAttempt, error) {
	var out QuizAttempt
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if a.rec == nil {
			return fmt.Errorf("%w: student=%s", contractx.ErrNotFound, studentID)
		}
		topic, idx, ok := a.rec.findAttempt(quizID)
		if !ok {
			return fmt.Errorf("%w: quiz=%s", contractx.ErrNotFound, quizID)
		}
		out = a.rec.QuizHistory[topic][idx].Clone()
		return nil
	})
	return out, err
}

// RecordGrade stores a grading outcome. An attempt is graded at most once.
func (s *Store) RecordGrade(ctx context.Context, studentID string, grade GradeRecord) (QuizAttempt, error) {
	var out QuizAttempt
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if a.rec == nil {
			return fmt.Errorf("%w: student=%s", contractx.ErrNotFound, studentID)
		}
		next := a.rec.clone()
		graded, err := applyGrade(next, grade)
		if err != nil {
			return err
		}
		next.Profile.UpdatedAt = s.now().UTC()
		if err := s.commit(ctx, a, next); err != nil {
			return err
		}
		out = graded
		return nil
	})
	return out, err
}

// Apply merges one activity's delta atomically: either every part lands or
// nothing does.
func (s *Store) Apply(ctx context.Context, studentID string, delta Delta) (Snapshot, error) {
	if err := validatePatch(delta.Patch); err != nil {
		return Snapshot{}, err
	}
	if delta.StudyMinutes < 0 {
		return Snapshot{}, fmt.Errorf("%w: study minutes must be >= 0", contractx.ErrValidation)
	}

	var out Snapshot
	err := s.withArena(ctx, studentID, func(a *arena) error {
		if a.rec == nil {
			return fmt.Errorf("%w: student=%s", contractx.ErrNotFound, studentID)
		}
		next := a.rec.clone()
		now := s.now()
		applyPatch(next.Profile, delta.Patch, now)
		studiedAt := delta.StudiedAt
		if studiedAt.IsZero() {
			studiedAt = now
		}
		creditStudy(next.Profile, delta.StudyMinutes, studiedAt)
		for _, quizID := range delta.Supersede {
			supersede(next, quizID)
		}
		for _, na := range delta.NewAttempts {
			if _, err := appendAttempt(next, na.Topic, na.Attempt); err != nil {
				return err
			}
		}
		for _, g := range delta.Grades {
			if _, err := applyGrade(next, g); err != nil {
				return err
			}
		}
		if err := s.commit(ctx, a, next); err != nil {
			return err
		}
		out = snapshotOf(next)
		return nil
	})
	return out, err
}

func (s *Store) withArena(ctx context.Context, studentID string, fn func(a *arena) error) error {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, ErrInvalidStudent)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	a, ok := s.arenas[studentID]
	if !ok {
		a = &arena{}
		s.arenas[studentID] = a
	}
	s.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		if err := s.load(ctx, a, studentID); err != nil {
			return err
		}
	}
	return fn(a)
}

func (s *Store) load(ctx context.Context, a *arena, studentID string) error {
	if s.persister == nil {
		a.loaded = true
		return nil
	}
	rec, err := s.persister.Load(ctx, studentID)
	if errors.Is(err, ErrRecordNotFound) {
		a.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("load student=%s: %w", studentID, err)
	}
	if err := rec.normalize(); err != nil {
		return fmt.Errorf("load student=%s: %w", studentID, err)
	}
	a.rec = rec
	a.loaded = true
	return nil
}

func (s *Store) ensureRecord(ctx context.Context, a *arena, studentID string) error {
	if a.rec != nil {
		return nil
	}
	next := &Record{
		Profile:     NewStudentProfile(studentID, s.now()),
		QuizHistory: make(map[string]QuizHistory, 4),
	}
	if err := s.commit(ctx, a, next); err != nil {
		return err
	}
	log.Debug().Str("student_id", studentID).Msg("memory: created student profile")
	return nil
}

// commit persists next before publishing it to the arena.
func (s *Store) commit(ctx context.Context, a *arena, next *Record) error {
	if s.persister != nil {
		if err := s.persister.Save(ctx, next); err != nil {
			return fmt.Errorf("save student=%s: %w", next.Profile.StudentID, err)
		}
	}
	a.rec = next
	return nil
}

func appendAttempt(rec *Record, topic string, attempt QuizAttempt) (string, error) {
	key := NormalizeTopic(topic)
	if key == "" {
		return "", fmt.Errorf("%w: quiz topic is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(attempt.QuizID) == "" {
		return "", fmt.Errorf("%w: quiz id is empty", contractx.ErrValidation)
	}
	if _, _, exists := rec.findAttempt(attempt.QuizID); exists {
		return "", fmt.Errorf("%w: quiz id %s already recorded", contractx.ErrValidation, attempt.QuizID)
	}
	attempt = attempt.Clone()
	attempt.Topic = key
	rec.QuizHistory[key] = append(rec.QuizHistory[key], attempt)
	return key, nil
}

func applyGrade(rec *Record, grade GradeRecord) (QuizAttempt, error) {
	topic, idx, ok := rec.findAttempt(grade.QuizID)
	if !ok {
		return QuizAttempt{}, fmt.Errorf("%w: quiz=%s", contractx.ErrNotFound, grade.QuizID)
	}
	if grade.Score < 0 || grade.Score > 100 {
		return QuizAttempt{}, fmt.Errorf("%w: score %d out of range", contractx.ErrValidation, grade.Score)
	}
	attempt := &rec.QuizHistory[topic][idx]
	if attempt.Graded {
		return QuizAttempt{}, fmt.Errorf("%w: quiz=%s", contractx.ErrAlreadyGraded, grade.QuizID)
	}
	if attempt.Superseded {
		return QuizAttempt{}, fmt.Errorf("%w: quiz=%s was replaced by a newer quiz", contractx.ErrStaleQuiz, grade.QuizID)
	}
	score := grade.Score
	gradedAt := grade.GradedAt.UTC()
	attempt.Score = &score
	attempt.Graded = true
	attempt.GradedAt = &gradedAt
	attempt.SubmittedAnswers = make(map[int]string, len(grade.SubmittedAnswers))
	for k, v := range grade.SubmittedAnswers {
		attempt.SubmittedAnswers[k] = v
	}
	attempt.Items = append([]ItemResult(nil), grade.Items...)

	rec.Profile.ensureMaps()
	rec.Profile.Reviews[topic] = ScheduleReview(rec.Profile.Reviews[topic], topic, score, gradedAt)
	return attempt.Clone(), nil
}

// supersede retires an ungraded attempt so it can no longer be graded.
// Unknown or already graded ids are left alone.
func supersede(rec *Record, quizID string) {
	topic, idx, ok := rec.findAttempt(quizID)
	if !ok {
		return
	}
	if attempt := &rec.QuizHistory[topic][idx]; !attempt.Graded {
		attempt.Superseded = true
	}
}

func snapshotOf(rec *Record) Snapshot {
	c := rec.clone()
	return Snapshot{
		Profile: *c.Profile,
		History: c.QuizHistory,
	}
}
