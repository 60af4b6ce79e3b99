package orchestratornode

import (
	"fmt"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Response.Message == "" {
		return GraphOutput{}, fmt.Errorf("%w: %s activity returned empty message", contractx.ErrSchemaViolation, in.Activity)
	}
	return GraphOutput{
		Output: TurnOutput{
			Activity: in.Activity,
			Message:  in.Response.Message,
			Data:     in.Response.Data,
		},
		Session: in.Session,
	}, nil
}
