package grading

import (
	"sort"
	"strings"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
)

func (e *Engine) compare(q memory.Question, submitted string) (bool, string) {
	switch questionType(q) {
	case memory.QuestionMultipleChoice:
		if choiceEqual(q.Choices, submitted, q.ExpectedAnswer) {
			return true, "Correct!"
		}
		return false, "Incorrect choice."
	case memory.QuestionMultiSelect:
		if setEqual(splitSet(submitted), splitSet(q.ExpectedAnswer)) {
			return true, "Correct!"
		}
		return false, "Selection does not match the answer key."
	case memory.QuestionNumeric:
		eps := e.epsilon
		if q.Tolerance != nil && *q.Tolerance >= 0 {
			eps = *q.Tolerance
		}
		ok, err := numericMatch(submitted, q.ExpectedAnswer, eps)
		switch {
		case err != nil:
			return false, "Answer is not a number."
		case ok:
			return true, "Correct!"
		default:
			return false, "Incorrect value."
		}
	case memory.QuestionCoding:
		// Code is never executed; a submission counts.
		return true, "Solution submitted, review it with the explainer."
	default:
		if normalize(submitted) == normalize(q.ExpectedAnswer) {
			return true, "Correct!"
		}
		return false, "Answer does not match the key."
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// choiceEqual matches either the option text or its letter label when the
// question lists choices.
func choiceEqual(choices []string, submitted, expected string) bool {
	got, want := normalize(submitted), normalize(expected)
	if got == want {
		return true
	}
	return resolveChoice(choices, got) == resolveChoice(choices, want)
}

func resolveChoice(choices []string, answer string) string {
	answer = strings.TrimRight(answer, ").:")
	if len(answer) == 1 && answer[0] >= 'a' && answer[0] <= 'z' {
		if idx := int(answer[0] - 'a'); idx < len(choices) {
			return normalize(choices[idx])
		}
	}
	return answer
}

func splitSet(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		n := normalize(p)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func setEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
