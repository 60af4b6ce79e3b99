package specialist

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

type quizGraphState struct {
	Req     activity.Request
	IsGrade bool
}

type quizFlow func(context.Context, activity.Request) (activity.Response, error)

// compileQuizGraph routes a quiz turn to grading when answers are submitted
// for a pending attempt and to generation otherwise.
func compileQuizGraph(
	ctx context.Context,
	generate quizFlow,
	grade quizFlow,
) (compose.Runnable[activity.Request, activity.Response], error) {
	graph := compose.NewGraph[activity.Request, activity.Response]()

	if err := graph.AddLambdaNode("validate_and_prepare",
		compose.InvokableLambda(func(ctx context.Context, req activity.Request) (*quizGraphState, error) {
			if req.Intent == contractx.IntentSubmitAnswers {
				if req.Attempt == nil {
					return nil, fmt.Errorf("%w: no pending attempt to grade", contractx.ErrMalformedAttempt)
				}
				return &quizGraphState{Req: req, IsGrade: true}, nil
			}
			if strings.TrimSpace(req.Topic) == "" {
				return nil, fmt.Errorf("%w: quiz needs a topic", contractx.ErrValidation)
			}
			return &quizGraphState{Req: req}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add quiz validate node: %w", err)
	}

	if err := graph.AddLambdaNode("generate_path",
		compose.InvokableLambda(func(ctx context.Context, in *quizGraphState) (activity.Response, error) {
			if in == nil {
				return activity.Response{}, fmt.Errorf("%w: quiz graph state is nil", contractx.ErrValidation)
			}
			return generate(ctx, in.Req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add quiz generate node: %w", err)
	}

	if err := graph.AddLambdaNode("grade_path",
		compose.InvokableLambda(func(ctx context.Context, in *quizGraphState) (activity.Response, error) {
			if in == nil {
				return activity.Response{}, fmt.Errorf("%w: quiz graph state is nil", contractx.ErrValidation)
			}
			return grade(ctx, in.Req)
		}),
	); err != nil {
		return nil, fmt.Errorf("add quiz grade node: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *quizGraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: quiz graph state is nil", contractx.ErrValidation)
			}
			if in.IsGrade {
				return "grade_path", nil
			}
			return "generate_path", nil
		},
		map[string]bool{
			"generate_path": true,
			"grade_path":    true,
		},
	)

	if err := graph.AddBranch("validate_and_prepare", branch); err != nil {
		return nil, fmt.Errorf("add quiz branch: %w", err)
	}
	if err := graph.AddEdge(compose.START, "validate_and_prepare"); err != nil {
		return nil, fmt.Errorf("add quiz edge start->validate: %w", err)
	}
	if err := graph.AddEdge("generate_path", compose.END); err != nil {
		return nil, fmt.Errorf("add quiz edge generate->end: %w", err)
	}
	if err := graph.AddEdge("grade_path", compose.END); err != nil {
		return nil, fmt.Errorf("add quiz edge grade->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("specialist.quiz_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile quiz graph: %w", err)
	}
	return runner, nil
}
