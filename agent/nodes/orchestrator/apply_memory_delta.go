package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
)

// ApplyMemoryDelta merges the activity delta plus the turn's own study log
// into the student record in one atomic write.
func ApplyMemoryDelta(ctx context.Context, in *GraphState, mem MemoryStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	delta := turnDelta(in)
	if delta.IsEmpty() {
		in.Applied = in.Snapshot
		return in, nil
	}

	snap, err := mem.Apply(ctx, in.StudentID, delta)
	if err != nil {
		if len(delta.Grades) > 0 && errors.Is(err, contractx.ErrAlreadyGraded) {
			return nil, fmt.Errorf("%w: %w", contractx.ErrStaleQuiz, err)
		}
		return nil, err
	}
	in.Applied = snap
	return in, nil
}

// turnDelta folds the turn's own study log into the activity delta. XP and
// the streak are derived by the store from the record it holds.
func turnDelta(in *GraphState) memory.Delta {
	delta := in.Response.Delta
	delta.StudyMinutes += in.Payload.StudyMinutes
	if delta.StudyMinutes > 0 {
		delta.StudiedAt = in.Now
	}
	if len(in.Payload.Goals) > 0 {
		delta.Patch.Goals = append(append([]string{}, delta.Patch.Goals...), in.Payload.Goals...)
	}
	return delta
}
