package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
)

// reportActivity needs no capability; it renders the progress report.
type reportActivity struct {
	aggregator *progress.Aggregator
}

func (r *reportActivity) Run(_ context.Context, req activity.Request) (activity.Response, error) {
	report := r.aggregator.Compute(req.Profile(), req.Snapshot.History, req.Topic)
	return activity.Response{
		Activity: statex.ActivityReportProgress,
		Message:  renderReport(report),
		Data:     report,
	}, nil
}

func renderReport(r progress.Report) string {
	var b strings.Builder
	if len(r.Topics) == 0 {
		b.WriteString("No progress yet.")
	} else {
		b.WriteString("Mastery:")
		for _, tp := range r.Topics {
			fmt.Fprintf(&b, "\n- %s: %d%%", tp.Topic, tp.Mastery)
			if tp.Completed {
				b.WriteString(" (completed)")
			}
		}
	}
	if len(r.WeakAreas) > 0 {
		fmt.Fprintf(&b, "\nWeak areas: %s", strings.Join(r.WeakAreas, ", "))
	}
	fmt.Fprintf(&b, "\nStudy time: %d min, XP: %d, streak: %d", r.TotalStudyMinutes, r.XP, r.Streak)
	for _, s := range r.Suggestions {
		if s.Topic != "" {
			fmt.Fprintf(&b, "\nNext for %s: %s", s.Topic, s.Text)
		} else {
			fmt.Fprintf(&b, "\nNext: %s", s.Text)
		}
	}
	return b.String()
}
