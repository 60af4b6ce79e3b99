package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

// LoadSnapshot reads the student record, creating the profile on first
// reference.
func LoadSnapshot(ctx context.Context, in *GraphState, mem MemoryStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	snap, err := mem.FetchSnapshot(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	in.Snapshot = snap
	return in, nil
}
