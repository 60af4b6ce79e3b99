package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
)

type GuardConfig struct {
	// Timeout bounds every capability call. Zero disables it.
	Timeout time.Duration
	// MaxFailures consecutive failures open the breaker. Zero disables it.
	MaxFailures uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
	// OnCall observes every guarded call; nil is allowed.
	OnCall func(name string, elapsed time.Duration, err error)
}

// Guard applies the capability timeout and a circuit breaker per wrapped
// capability, and classifies failures as ErrUpstream or ErrUpstreamTimeout.
type Guard struct {
	cfg GuardConfig
}

func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Guard{cfg: cfg}
}

// Model wraps m. Each call to Model gets its own breaker named name.
func (g *Guard) Model(name string, m contractx.LanguageModel) contractx.LanguageModel {
	return &guardedModel{next: m, call: g.newCaller(name)}
}

// Lookup wraps l with its own breaker named name.
func (g *Guard) Lookup(name string, l contractx.Lookup) contractx.Lookup {
	return &guardedLookup{next: l, call: g.newCaller(name)}
}

type caller struct {
	name    string
	cfg     GuardConfig
	breaker *gobreaker.CircuitBreaker
}

func (g *Guard) newCaller(name string) *caller {
	c := &caller{name: name, cfg: g.cfg}
	if g.cfg.MaxFailures > 0 {
		maxFailures := g.cfg.MaxFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     g.cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("llm: circuit breaker state changed")
			},
			// Caller cancellation says nothing about upstream health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		})
	}
	return c
}

func (c *caller) do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	callCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	run := func() (any, error) { return fn(callCtx) }

	var (
		out any
		err error
	)
	if c.breaker != nil {
		out, err = c.breaker.Execute(run)
	} else {
		out, err = run()
	}
	err = c.classify(ctx, callCtx, err)
	if c.cfg.OnCall != nil {
		c.cfg.OnCall(c.name, time.Since(start), err)
	}
	return out, err
}

func (c *caller) classify(parent, callCtx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, contractx.ErrUpstream), errors.Is(err, contractx.ErrUpstreamTimeout),
		errors.Is(err, contractx.ErrValidation), errors.Is(err, contractx.ErrPromptMissing):
		return err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %s: %v", contractx.ErrUpstream, c.name, err)
	case parent.Err() == nil && (errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)):
		return fmt.Errorf("%w: %s after %s", contractx.ErrUpstreamTimeout, c.name, c.cfg.Timeout)
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", contractx.ErrUpstreamTimeout, c.name, err)
	default:
		return fmt.Errorf("%w: %s: %w", contractx.ErrUpstream, c.name, err)
	}
}

type guardedModel struct {
	next contractx.LanguageModel
	call *caller
}

func (m *guardedModel) Generate(ctx context.Context, prompt string, input map[string]any) (string, error) {
	out, err := m.call.do(ctx, func(ctx context.Context) (any, error) {
		return m.next.Generate(ctx, prompt, input)
	})
	if err != nil {
		return "", err
	}
	s, _ := out.(string)
	return s, nil
}

type guardedLookup struct {
	next contractx.Lookup
	call *caller
}

func (l *guardedLookup) Search(ctx context.Context, query string) ([]contractx.Resource, error) {
	out, err := l.call.do(ctx, func(ctx context.Context) (any, error) {
		return l.next.Search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	res, _ := out.([]contractx.Resource)
	return res, nil
}
