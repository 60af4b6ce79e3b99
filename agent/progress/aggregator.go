package progress

import (
	"sort"
	"time"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
)

const (
	DefaultWeakThreshold    = 60
	DefaultMasteryThreshold = 80
)

const (
	SuggestStartAssessment = "start with an assessment"
	SuggestReviewCore      = "review core concepts and retake a beginner quiz"
	SuggestReviewWeak      = "review weak sub-skills"
	SuggestAdvancePrefix   = "advance to next topic in goal sequence: "
	SuggestExploreRelated  = "explore a new related topic"
)

type TopicProgress struct {
	Topic string `json:"topic"`
	// Mastery is the score of the latest graded attempt, 0 when none.
	Mastery        int        `json:"mastery"`
	GradedAttempts int        `json:"graded_attempts"`
	TotalAttempts  int        `json:"total_attempts"`
	LastGradedAt   *time.Time `json:"last_graded_at,omitempty"`
	Completed      bool       `json:"completed"`
	Suggestion     string     `json:"suggestion"`
}

type Suggestion struct {
	Topic string `json:"topic,omitempty"`
	Text  string `json:"text"`
}

type Report struct {
	StudentID   string          `json:"student_id"`
	Topics      []TopicProgress `json:"topics"`
	WeakAreas   []string        `json:"weak_areas"`
	Suggestions []Suggestion    `json:"suggestions"`

	TotalStudyMinutes int                     `json:"total_study_minutes"`
	XP                int                     `json:"xp"`
	Streak            int                     `json:"streak"`
	Badges            []string                `json:"badges"`
	DueReviews        []memory.ReviewSchedule `json:"due_reviews"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// Mastery returns the mastery of topic and whether the report lists it.
func (r Report) Mastery(topic string) (int, bool) {
	topic = memory.NormalizeTopic(topic)
	for _, tp := range r.Topics {
		if tp.Topic == topic {
			return tp.Mastery, true
		}
	}
	return 0, false
}

type Option func(*Aggregator)

func WithWeakThreshold(threshold int) Option {
	return func(a *Aggregator) {
		if threshold >= 0 && threshold <= 100 {
			a.weakThreshold = threshold
		}
	}
}

func WithMasteryThreshold(threshold int) Option {
	return func(a *Aggregator) {
		if threshold >= 0 && threshold <= 100 {
			a.masteryThreshold = threshold
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// Aggregator derives progress reports from memory. It never mutates its
// inputs.
type Aggregator struct {
	weakThreshold    int
	masteryThreshold int
	now              func() time.Time
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		weakThreshold:    DefaultWeakThreshold,
		masteryThreshold: DefaultMasteryThreshold,
		now:              time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.weakThreshold > a.masteryThreshold {
		a.weakThreshold = a.masteryThreshold
	}
	return a
}

// Compute builds the report for every known topic, or only for topic when
// it is non-empty.
func (a *Aggregator) Compute(profile memory.StudentProfile, histories map[string]memory.QuizHistory, topic string) Report {
	now := a.now().UTC()
	report := Report{
		StudentID:         profile.StudentID,
		Topics:            []TopicProgress{},
		WeakAreas:         []string{},
		Suggestions:       []Suggestion{},
		TotalStudyMinutes: profile.TotalStudyMinutes,
		XP:                profile.XP,
		Streak:            profile.Streak,
		Badges:            append([]string{}, profile.Badges...),
		DueReviews:        dueReviews(profile.Reviews, now),
		GeneratedAt:       now,
	}

	topics := topicsOf(profile, histories, topic)
	if len(topics) == 0 {
		report.Suggestions = append(report.Suggestions, Suggestion{Text: SuggestStartAssessment})
		return report
	}

	for _, t := range topics {
		tp := a.topicProgress(profile, histories[t], t)
		report.Topics = append(report.Topics, tp)
		report.Suggestions = append(report.Suggestions, Suggestion{Topic: t, Text: tp.Suggestion})
	}
	report.WeakAreas = a.weakAreas(report.Topics)
	return report
}

func (a *Aggregator) topicProgress(profile memory.StudentProfile, history memory.QuizHistory, topic string) TopicProgress {
	tp := TopicProgress{
		Topic:         topic,
		TotalAttempts: len(history),
		Completed:     profile.HasCompleted(topic),
	}
	for _, at := range history {
		if at.Graded && at.Score != nil {
			tp.GradedAttempts++
		}
	}
	if latest, ok := history.LatestGraded(); ok {
		tp.Mastery = *latest.Score
		ts := latest.Timestamp
		if latest.GradedAt != nil {
			ts = *latest.GradedAt
		}
		tp.LastGradedAt = &ts
	}
	tp.Suggestion = a.suggest(profile, tp)
	return tp
}

func (a *Aggregator) suggest(profile memory.StudentProfile, tp TopicProgress) string {
	switch {
	case tp.GradedAttempts == 0:
		return SuggestStartAssessment
	case tp.Mastery < a.weakThreshold:
		return SuggestReviewCore
	case tp.Mastery < a.masteryThreshold:
		return SuggestReviewWeak
	}
	if next := nextGoal(profile, tp.Topic); next != "" {
		return SuggestAdvancePrefix + next
	}
	return SuggestExploreRelated
}

// weakAreas lists topics below the weak threshold, ascending by mastery
// then topic.
func (a *Aggregator) weakAreas(topics []TopicProgress) []string {
	weak := make([]TopicProgress, 0, len(topics))
	for _, tp := range topics {
		if tp.Mastery < a.weakThreshold {
			weak = append(weak, tp)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		if weak[i].Mastery != weak[j].Mastery {
			return weak[i].Mastery < weak[j].Mastery
		}
		return weak[i].Topic < weak[j].Topic
	})
	out := make([]string, len(weak))
	for i, tp := range weak {
		out[i] = tp.Topic
	}
	return out
}

func nextGoal(profile memory.StudentProfile, current string) string {
	for _, g := range profile.Goals {
		key := memory.NormalizeTopic(g)
		if key == "" || key == current || profile.HasCompleted(key) {
			continue
		}
		return g
	}
	return ""
}

func topicsOf(profile memory.StudentProfile, histories map[string]memory.QuizHistory, only string) []string {
	if only = memory.NormalizeTopic(only); only != "" {
		return []string{only}
	}
	set := make(map[string]struct{}, len(histories)+len(profile.Goals))
	add := func(t string) {
		if t = memory.NormalizeTopic(t); t != "" && t != memory.GeneralTopic {
			set[t] = struct{}{}
		}
	}
	for t := range histories {
		add(t)
	}
	for _, g := range profile.Goals {
		add(g)
	}
	for _, t := range profile.CompletedTopics {
		add(t)
	}
	for t := range profile.KnowledgeLevels {
		add(t)
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func dueReviews(reviews map[string]memory.ReviewSchedule, now time.Time) []memory.ReviewSchedule {
	out := []memory.ReviewSchedule{}
	for _, r := range reviews {
		if !r.NextReview.IsZero() && !r.NextReview.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextReview.Equal(out[j].NextReview) {
			return out[i].NextReview.Before(out[j].NextReview)
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}
