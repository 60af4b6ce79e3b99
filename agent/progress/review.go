package progress

import "github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"

// BadgeScore is the minimum quiz score that earns a mastery badge.
const BadgeScore = 90

// QuizStudyMinutes is the study time credited for answering a quiz.
func QuizStudyMinutes(questions int) int {
	if m := questions * 2; m > 1 {
		return m
	}
	return 1
}

// MasteryBadge names the badge earned for a top score on topic.
func MasteryBadge(topic string) string {
	return "mastery_" + memory.NormalizeTopic(topic)
}
