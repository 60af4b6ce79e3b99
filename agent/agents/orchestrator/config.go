package orchestrator

import (
	"fmt"
	"time"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/grading"
	llmx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/llm"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/progress"
)

// Config holds the tutoring thresholds and capability limits (TUTOR_ prefix).
type Config struct {
	MasteryThreshold int     `split_words:"true" default:"80"`
	WeakThreshold    int     `split_words:"true" default:"60"`
	NumericEpsilon   float64 `split_words:"true" default:"0.000001"`
	QuizSize         int     `split_words:"true" default:"5"`
	MaxResources     int     `split_words:"true" default:"5"`

	CapabilityTimeout time.Duration `split_words:"true" default:"30s"`
	BreakerFailures   uint32        `split_words:"true" default:"5"`
	BreakerCooldown   time.Duration `split_words:"true" default:"30s"`
}

func (c Config) Validate() error {
	if c.MasteryThreshold < 0 || c.MasteryThreshold > 100 {
		return fmt.Errorf("%w: mastery threshold %d is outside [0,100]", contractx.ErrValidation, c.MasteryThreshold)
	}
	if c.WeakThreshold < 0 || c.WeakThreshold > c.MasteryThreshold {
		return fmt.Errorf("%w: weak threshold %d must be within [0,%d]", contractx.ErrValidation, c.WeakThreshold, c.MasteryThreshold)
	}
	if c.NumericEpsilon < 0 {
		return fmt.Errorf("%w: numeric epsilon must be >= 0", contractx.ErrValidation)
	}
	if c.QuizSize < 1 {
		return fmt.Errorf("%w: quiz size must be >= 1", contractx.ErrValidation)
	}
	if c.CapabilityTimeout < 0 {
		return fmt.Errorf("%w: capability timeout must be >= 0", contractx.ErrValidation)
	}
	return nil
}

func (c Config) Engine() *grading.Engine {
	return grading.NewEngine(
		grading.WithMasteryThreshold(c.MasteryThreshold),
		grading.WithNumericEpsilon(c.NumericEpsilon),
	)
}

func (c Config) Aggregator() *progress.Aggregator {
	return progress.NewAggregator(
		progress.WithMasteryThreshold(c.MasteryThreshold),
		progress.WithWeakThreshold(c.WeakThreshold),
	)
}

func (c Config) Guard(onCall func(name string, elapsed time.Duration, err error)) llmx.GuardConfig {
	return llmx.GuardConfig{
		Timeout:     c.CapabilityTimeout,
		MaxFailures: c.BreakerFailures,
		Cooldown:    c.BreakerCooldown,
		OnCall:      onCall,
	}
}
