package memory

import (
	"sort"
	"strings"
	"time"
)

// GeneralTopic keys the knowledge level of an assessment run without a
// topic. It is not a study topic of its own.
const GeneralTopic = "general"

type KnowledgeLevel string

const (
	LevelUnset        KnowledgeLevel = ""
	LevelNovice       KnowledgeLevel = "novice"
	LevelIntermediate KnowledgeLevel = "intermediate"
	LevelAdvanced     KnowledgeLevel = "advanced"
)

// ParseKnowledgeLevel accepts the canonical names plus "beginner".
func ParseKnowledgeLevel(raw string) (KnowledgeLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "novice", "beginner":
		return LevelNovice, true
	case "intermediate":
		return LevelIntermediate, true
	case "advanced":
		return LevelAdvanced, true
	default:
		return LevelUnset, false
	}
}

type LearningStyle string

const (
	StyleUnset     LearningStyle = ""
	StyleVisual    LearningStyle = "visual"
	StyleVerbal    LearningStyle = "verbal"
	StylePractical LearningStyle = "practical"
)

func ParseLearningStyle(raw string) (LearningStyle, bool) {
	switch s := LearningStyle(strings.ToLower(strings.TrimSpace(raw))); s {
	case StyleVisual, StyleVerbal, StylePractical:
		return s, true
	default:
		return StyleUnset, false
	}
}

// ReviewSchedule is the SM-2 state kept per topic.
type ReviewSchedule struct {
	Topic        string    `json:"topic"`
	IntervalDays int       `json:"interval_days"`
	Repetitions  int       `json:"repetitions"`
	EFactor      float64   `json:"efactor"`
	LastReview   time.Time `json:"last_review"`
	NextReview   time.Time `json:"next_review"`
}

// StudentProfile is the long-lived record of one learner.
type StudentProfile struct {
	StudentID         string                    `json:"student_id"`
	KnowledgeLevels   map[string]KnowledgeLevel `json:"knowledge_level"`
	LearningStyle     LearningStyle             `json:"learning_style"`
	Goals             []string                  `json:"goals"`
	CompletedTopics   []string                  `json:"completed_topics"`
	TotalStudyMinutes int                       `json:"total_study_minutes"`

	XP            int                       `json:"xp"`
	Streak        int                       `json:"streak"`
	LastStudyDate string                    `json:"last_study_date,omitempty"`
	Badges        []string                  `json:"badges"`
	Reviews       map[string]ReviewSchedule `json:"reviews,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewStudentProfile(studentID string, now time.Time) *StudentProfile {
	return &StudentProfile{
		StudentID:       studentID,
		KnowledgeLevels: make(map[string]KnowledgeLevel, 4),
		Goals:           []string{},
		CompletedTopics: []string{},
		Badges:          []string{},
		Reviews:         make(map[string]ReviewSchedule, 4),
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}

// KnowledgeLevelFor returns the level for topic. An empty topic matches any
// recorded level.
func (p *StudentProfile) KnowledgeLevelFor(topic string) KnowledgeLevel {
	if p == nil {
		return LevelUnset
	}
	topic = NormalizeTopic(topic)
	if topic != "" {
		return p.KnowledgeLevels[topic]
	}
	keys := make([]string, 0, len(p.KnowledgeLevels))
	for k := range p.KnowledgeLevels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if lvl := p.KnowledgeLevels[k]; lvl != LevelUnset {
			return lvl
		}
	}
	return LevelUnset
}

// IsComplete reports whether the profile has both the learning style and a
// knowledge level for topic.
func (p *StudentProfile) IsComplete(topic string) bool {
	if p == nil {
		return false
	}
	return p.LearningStyle != StyleUnset && p.KnowledgeLevelFor(topic) != LevelUnset
}

func (p *StudentProfile) HasCompleted(topic string) bool {
	if p == nil {
		return false
	}
	topic = NormalizeTopic(topic)
	for _, t := range p.CompletedTopics {
		if t == topic {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p *StudentProfile) Clone() *StudentProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.KnowledgeLevels = make(map[string]KnowledgeLevel, len(p.KnowledgeLevels))
	for k, v := range p.KnowledgeLevels {
		out.KnowledgeLevels[k] = v
	}
	out.Goals = append([]string{}, p.Goals...)
	out.CompletedTopics = append([]string{}, p.CompletedTopics...)
	out.Badges = append([]string{}, p.Badges...)
	out.Reviews = make(map[string]ReviewSchedule, len(p.Reviews))
	for k, v := range p.Reviews {
		out.Reviews[k] = v
	}
	return &out
}

// ensureMaps repairs nil collections after decoding.
func (p *StudentProfile) ensureMaps() {
	if p.KnowledgeLevels == nil {
		p.KnowledgeLevels = make(map[string]KnowledgeLevel, 4)
	}
	if p.Reviews == nil {
		p.Reviews = make(map[string]ReviewSchedule, 4)
	}
	if p.Goals == nil {
		p.Goals = []string{}
	}
	if p.CompletedTopics == nil {
		p.CompletedTopics = []string{}
	}
	if p.Badges == nil {
		p.Badges = []string{}
	}
}

// NormalizeTopic lower-cases and trims a topic identifier.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}
