package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

// ProfilePatch is a partial profile update. Nil/empty fields are left alone.
// Scalars overwrite, sets union, sequences append, counters never decrease.
type ProfilePatch struct {
	KnowledgeLevels   map[string]KnowledgeLevel `json:"knowledge_level,omitempty"`
	LearningStyle     *LearningStyle            `json:"learning_style,omitempty"`
	Goals             []string                  `json:"goals,omitempty"`
	CompletedTopics   []string                  `json:"completed_topics,omitempty"`
	TotalStudyMinutes *int                      `json:"total_study_minutes,omitempty"`

	XP            *int                      `json:"xp,omitempty"`
	Streak        *int                      `json:"streak,omitempty"`
	LastStudyDate *string                   `json:"last_study_date,omitempty"`
	Badges        []string                  `json:"badges,omitempty"`
	Reviews       map[string]ReviewSchedule `json:"reviews,omitempty"`
}

func (p ProfilePatch) IsEmpty() bool {
	return len(p.KnowledgeLevels) == 0 && p.LearningStyle == nil && len(p.Goals) == 0 &&
		len(p.CompletedTopics) == 0 && p.TotalStudyMinutes == nil && p.XP == nil &&
		p.Streak == nil && p.LastStudyDate == nil && len(p.Badges) == 0 && len(p.Reviews) == 0
}

// NewAttempt is a quiz attempt to append under topic.
type NewAttempt struct {
	Topic   string      `json:"topic"`
	Attempt QuizAttempt `json:"attempt"`
}

// Delta is everything one activity asks to merge into a student record.
// Store.Apply applies it all or nothing. XP, the streak and review schedules
// are derived from the stored record inside Apply, so concurrent deltas add
// up instead of overwriting each other.
type Delta struct {
	Patch        ProfilePatch `json:"patch"`
	StudyMinutes int          `json:"study_minutes,omitempty"`
	// StudiedAt dates StudyMinutes for the streak. Zero means the store clock.
	StudiedAt   time.Time     `json:"studied_at,omitempty"`
	NewAttempts []NewAttempt  `json:"new_attempts,omitempty"`
	Grades      []GradeRecord `json:"grades,omitempty"`
	// Supersede lists pending quiz ids replaced by a newly issued quiz.
	Supersede []string `json:"supersede,omitempty"`
}

func (d Delta) IsEmpty() bool {
	return d.Patch.IsEmpty() && d.StudyMinutes == 0 && len(d.NewAttempts) == 0 &&
		len(d.Grades) == 0 && len(d.Supersede) == 0
}

func validatePatch(p ProfilePatch) error {
	for topic, lvl := range p.KnowledgeLevels {
		if NormalizeTopic(topic) == "" {
			return fmt.Errorf("%w: knowledge level topic is empty", contractx.ErrValidation)
		}
		if _, ok := ParseKnowledgeLevel(string(lvl)); !ok {
			return fmt.Errorf("%w: invalid knowledge level %q", contractx.ErrValidation, lvl)
		}
	}
	if p.LearningStyle != nil {
		if _, ok := ParseLearningStyle(string(*p.LearningStyle)); !ok {
			return fmt.Errorf("%w: invalid learning style %q", contractx.ErrValidation, *p.LearningStyle)
		}
	}
	if p.TotalStudyMinutes != nil && *p.TotalStudyMinutes < 0 {
		return fmt.Errorf("%w: total study minutes must be >= 0", contractx.ErrValidation)
	}
	if p.XP != nil && *p.XP < 0 {
		return fmt.Errorf("%w: xp must be >= 0", contractx.ErrValidation)
	}
	if p.Streak != nil && *p.Streak < 0 {
		return fmt.Errorf("%w: streak must be >= 0", contractx.ErrValidation)
	}
	return nil
}

func applyPatch(p *StudentProfile, patch ProfilePatch, now time.Time) {
	p.ensureMaps()
	for topic, lvl := range patch.KnowledgeLevels {
		parsed, _ := ParseKnowledgeLevel(string(lvl))
		p.KnowledgeLevels[NormalizeTopic(topic)] = parsed
	}
	if patch.LearningStyle != nil {
		style, _ := ParseLearningStyle(string(*patch.LearningStyle))
		p.LearningStyle = style
	}
	p.Goals = appendUnique(p.Goals, patch.Goals, strings.TrimSpace)
	p.CompletedTopics = unionSorted(p.CompletedTopics, patch.CompletedTopics, NormalizeTopic)
	if patch.TotalStudyMinutes != nil && *patch.TotalStudyMinutes > p.TotalStudyMinutes {
		p.TotalStudyMinutes = *patch.TotalStudyMinutes
	}
	if patch.XP != nil && *patch.XP > p.XP {
		p.XP = *patch.XP
	}
	if patch.Streak != nil {
		p.Streak = *patch.Streak
	}
	if patch.LastStudyDate != nil {
		p.LastStudyDate = strings.TrimSpace(*patch.LastStudyDate)
	}
	p.Badges = unionSorted(p.Badges, patch.Badges, strings.TrimSpace)
	for topic, sched := range patch.Reviews {
		key := NormalizeTopic(topic)
		sched.Topic = key
		p.Reviews[key] = sched
	}
	p.UpdatedAt = now.UTC()
}

func appendUnique(dst, add []string, norm func(string) string) []string {
	seen := make(map[string]struct{}, len(dst)+len(add))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range add {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func unionSorted(dst, add []string, norm func(string) string) []string {
	out := appendUnique(append([]string{}, dst...), add, norm)
	sort.Strings(out)
	return out
}
