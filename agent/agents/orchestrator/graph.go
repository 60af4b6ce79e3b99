package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/nodes/orchestrator"
)

// compileHandleTurnGraph builds the linear turn pipeline. Any node error
// aborts the turn before the session is advanced.
func (o *Orchestrator) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(_ context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	steps := []struct {
		name string
		run  func(context.Context, *nodex.GraphState) (*nodex.GraphState, error)
	}{
		{"load_snapshot", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSnapshot(ctx, in, o.memory)
		}},
		{"route_activity", func(_ context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RouteActivity(in)
		}},
		{"dispatch_activity", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.DispatchActivity(ctx, in, o.activities)
		}},
		{"apply_memory_delta", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ApplyMemoryDelta(ctx, in, o.memory)
		}},
		{"publish_events", func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PublishEvents(ctx, in, o.events)
		}},
		{"advance_session", func(_ context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AdvanceSession(in)
		}},
	}

	prev := "validate_request"
	if err := graph.AddEdge(compose.START, prev); err != nil {
		return nil, fmt.Errorf("add edge start->%s: %w", prev, err)
	}
	for _, step := range steps {
		if err := graph.AddLambdaNode(step.name, compose.InvokableLambda(step.run)); err != nil {
			return nil, fmt.Errorf("add node %s: %w", step.name, err)
		}
		if err := graph.AddEdge(prev, step.name); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", prev, step.name, err)
		}
		prev = step.name
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(_ context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}
	if err := graph.AddEdge(prev, "finalize_reply"); err != nil {
		return nil, fmt.Errorf("add edge %s->finalize_reply: %w", prev, err)
	}
	if err := graph.AddEdge("finalize_reply", compose.END); err != nil {
		return nil, fmt.Errorf("add edge finalize_reply->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
