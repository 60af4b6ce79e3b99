package progress

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
)

var quizHeader = []string{
	"topic", "quiz_id", "score", "date", "questions_answered",
	"question_index", "question_text", "question_type",
	"student_answer", "correct_answer", "correct",
}

// WriteCSV writes a profile summary followed by one row per graded question.
func WriteCSV(w io.Writer, snap memory.Snapshot) error {
	cw := csv.NewWriter(w)
	p := snap.Profile

	summary := [][]string{
		{"student_id", p.StudentID},
		{"total_study_minutes", strconv.Itoa(p.TotalStudyMinutes)},
		{"xp", strconv.Itoa(p.XP)},
		{"streak", strconv.Itoa(p.Streak)},
		{},
		{"quiz_history"},
		quizHeader,
	}
	if err := cw.WriteAll(summary); err != nil {
		return fmt.Errorf("write csv summary: %w", err)
	}

	for _, at := range sortedAttempts(snap.History) {
		if err := writeAttempt(cw, at); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeAttempt(cw *csv.Writer, at memory.QuizAttempt) error {
	score := ""
	if at.Score != nil {
		score = strconv.Itoa(*at.Score)
	}
	base := []string{
		at.Topic,
		at.QuizID,
		score,
		at.Timestamp.UTC().Format(time.RFC3339),
		strconv.Itoa(len(at.SubmittedAnswers)),
	}
	if len(at.Questions) == 0 {
		return cw.Write(append(base, "", "", "", "", "", ""))
	}

	blank := make([]string, len(base))
	for i, q := range at.Questions {
		prefix := blank
		if i == 0 {
			prefix = base
		}
		correct := ""
		if i < len(at.Items) {
			correct = strconv.FormatBool(at.Items[i].Correct)
		}
		row := append(append([]string{}, prefix...),
			strconv.Itoa(i),
			q.Prompt,
			string(q.Type),
			at.SubmittedAnswers[i],
			q.ExpectedAnswer,
			correct,
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return nil
}

func sortedAttempts(histories map[string]memory.QuizHistory) []memory.QuizAttempt {
	var out []memory.QuizAttempt
	for _, h := range histories {
		out = append(out, h...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].QuizID < out[j].QuizID
	})
	return out
}
