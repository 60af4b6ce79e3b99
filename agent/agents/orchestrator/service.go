package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/activity"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	nodex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/nodes/orchestrator"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
	"github.com/Tharun007-TK/studybuddy-ai-agent/pkg/keymutex"
	metricsx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/metrics"
)

type TurnRequest struct {
	Session   statex.SessionState
	StudentID string
	Intent    contractx.Intent
	Payload   contractx.TurnPayload
}

type TurnOutput = nodex.TurnOutput

type TurnResult struct {
	Output  TurnOutput
	Session statex.SessionState
}

type Option func(*Orchestrator)

func WithAggregator(a *progress.Aggregator) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.aggregator = a
		}
	}
}

// WithEventPublisher sets the best-effort sink for quiz events.
func WithEventPublisher(p contractx.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

func WithMetrics(m *metricsx.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

type Orchestrator struct {
	memory     nodex.MemoryStore
	activities activity.Registry
	aggregator *progress.Aggregator
	publisher  contractx.EventPublisher
	events     contractx.EventPublisher
	metrics    *metricsx.Metrics

	locks       *keymutex.KeyMutex
	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(mem nodex.MemoryStore, activities activity.Registry, opts ...Option) (*Orchestrator, error) {
	if mem == nil {
		return nil, errors.New("memory store is required")
	}
	if activities == nil {
		return nil, errors.New("activity registry is required")
	}

	o := &Orchestrator{
		memory:     mem,
		activities: activities,
		aggregator: progress.NewAggregator(),
		locks:      keymutex.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.events = &instrumentedPublisher{next: o.publisher, metrics: o.metrics}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn runs one tutoring turn. Turns of one session run one at a time.
// On error the caller keeps its SessionState; no memory delta was applied
// unless the activity itself succeeded.
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	sessionID := strings.TrimSpace(req.Session.SessionID)
	if sessionID == "" {
		return TurnResult{}, fmt.Errorf("%w: %w", contractx.ErrValidation, statex.ErrInvalidSession)
	}
	unlock := o.locks.Lock(sessionID)
	defer unlock()

	start := time.Now()
	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		Session:   req.Session,
		StudentID: req.StudentID,
		Intent:    req.Intent,
		Payload:   req.Payload,
	})
	o.metrics.RecordTurn(string(out.Output.Activity), time.Since(start), err)
	if err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("session_id", sessionID).
			Str("student_id", req.StudentID).
			Str("intent", string(req.Intent)).
			Msg("orchestrator: turn failed")
		return TurnResult{}, err
	}

	log.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("student_id", out.Session.StudentID).
		Str("activity", string(out.Output.Activity)).
		Str("last_activity", string(out.Session.LastActivity)).
		Dur("elapsed", time.Since(start)).
		Msg("orchestrator: turn handled")
	return TurnResult{Output: out.Output, Session: out.Session}, nil
}

// GetProgress computes the progress report of studentID, optionally for one
// topic. It never mutates the record beyond creating a default profile.
func (o *Orchestrator) GetProgress(ctx context.Context, studentID, topic string) (progress.Report, error) {
	snap, err := o.memory.FetchSnapshot(ctx, studentID)
	if err != nil {
		return progress.Report{}, err
	}
	return o.aggregator.Compute(snap.Profile, snap.History, memory.NormalizeTopic(topic)), nil
}

// ExportCSV writes the progress summary and quiz history of studentID to w.
func (o *Orchestrator) ExportCSV(ctx context.Context, studentID string, w io.Writer) error {
	snap, err := o.memory.FetchSnapshot(ctx, studentID)
	if err != nil {
		return err
	}
	return progress.WriteCSV(w, snap)
}

type instrumentedPublisher struct {
	next    contractx.EventPublisher
	metrics *metricsx.Metrics
}

func (p *instrumentedPublisher) Publish(ctx context.Context, ev contractx.Event) error {
	if ev.Type == contractx.EventQuizGraded {
		p.metrics.RecordQuizScore(ev.Topic, ev.Score)
	}
	if p.next == nil {
		return nil
	}
	err := p.next.Publish(ctx, ev)
	p.metrics.RecordEvent(string(ev.Type), err)
	return err
}
