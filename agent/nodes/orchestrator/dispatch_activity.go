package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

func DispatchActivity(ctx context.Context, in *GraphState, registry activity.Registry) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	act, err := activity.For(registry, in.Activity)
	if err != nil {
		return nil, err
	}

	resp, err := act.Run(ctx, activity.Request{
		Activity:  in.Activity,
		StudentID: in.StudentID,
		Topic:     in.Topic,
		Intent:    in.Intent,
		Payload:   in.Payload,
		Snapshot:  in.Snapshot,
		Session:   in.Session.Clone(),
		Attempt:   in.Attempt,
		Now:       in.Now,
	})
	if err != nil {
		return nil, err
	}
	if resp.Activity == "" {
		resp.Activity = in.Activity
	}
	if resp.Activity != in.Activity {
		return nil, fmt.Errorf("%w: %s activity answered as %s", contractx.ErrSchemaViolation, in.Activity, resp.Activity)
	}
	resp.Message = strings.TrimSpace(resp.Message)
	if resp.Message == "" {
		return nil, fmt.Errorf("%w: %s activity returned empty message", contractx.ErrSchemaViolation, in.Activity)
	}
	in.Response = resp
	return in, nil
}
