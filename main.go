package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/agents/orchestrator"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/agents/specialist"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/api"
	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	llmx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/llm"
	"github.com/Tharun007-TK/studybuddy-ai-agent/agent/memory"
	statex "github.com/Tharun007-TK/studybuddy-ai-agent/agent/state"
	configx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/config"
	_ "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/logger/autoload"
	metricsx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/metrics"
	qstashx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/qstash"
	"github.com/Tharun007-TK/studybuddy-ai-agent/pkg/upstash"
)

type AppConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	MemoryBackend   string        `envconfig:"MEMORY_BACKEND" default:"inmemory"`
	SessionBackend  string        `envconfig:"SESSION_BACKEND" default:"inmemory"`
	EventsEnabled   bool          `envconfig:"EVENTS_ENABLED" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("studybuddy: exited")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("APP")
	tutorCfg := configx.MustNew[orchestrator.Config]("TUTOR")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")

	metrics := metricsx.NewMetrics()

	var upstashClient *upstash.Client
	needsUpstash := func() (*upstash.Client, error) {
		if upstashClient != nil {
			return upstashClient, nil
		}
		c, err := upstash.New(*configx.MustNew[upstash.Config]("UPSTASH_REDIS"))
		if err != nil {
			return nil, err
		}
		upstashClient = c
		return c, nil
	}

	persister, closePersister, err := newPersister(ctx, appCfg.MemoryBackend, needsUpstash)
	if err != nil {
		return err
	}
	defer closePersister()

	sessions, err := newSessionStore(appCfg.SessionBackend, needsUpstash)
	if err != nil {
		return err
	}

	guard := llmx.NewGuard(tutorCfg.Guard(metrics.RecordCapability))
	models, err := llmx.NewModelSet(ctx, *llmCfg, guard)
	if err != nil {
		return err
	}

	aggregator := tutorCfg.Aggregator()
	registry, err := specialist.NewRegistry(ctx, specialist.Deps{
		Models:       models,
		Engine:       tutorCfg.Engine(),
		Aggregator:   aggregator,
		QuizSize:     tutorCfg.QuizSize,
		MaxResources: tutorCfg.MaxResources,
	})
	if err != nil {
		return err
	}

	var storeOpts []memory.StoreOption
	if persister != nil {
		storeOpts = append(storeOpts, memory.WithPersister(persister))
	}
	opts := []orchestrator.Option{
		orchestrator.WithAggregator(aggregator),
		orchestrator.WithMetrics(metrics),
	}
	if appCfg.EventsEnabled {
		publisher, err := qstashx.NewClient(*configx.MustNew[qstashx.Config]("QSTASH"))
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithEventPublisher(publisher))
	}

	tutor, err := orchestrator.New(memory.NewStore(storeOpts...), registry, opts...)
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(tutor, sessions, api.WithMetrics(metrics))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              appCfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("memory_backend", appCfg.MemoryBackend).
			Str("session_backend", appCfg.SessionBackend).
			Bool("events", appCfg.EventsEnabled).
			Msg("studybuddy: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("studybuddy: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newPersister(
	ctx context.Context,
	backend string,
	upstashClient func() (*upstash.Client, error),
) (memory.Persister, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "inmemory":
		return nil, noop, nil
	case "upstash":
		client, err := upstashClient()
		if err != nil {
			return nil, noop, err
		}
		p, err := memory.NewUpstashPersister(client)
		return p, noop, err
	case "redis":
		p, err := memory.NewRedisPersister(ctx, *configx.MustNew[memory.RedisConfig]("REDIS"))
		if err != nil {
			return nil, noop, err
		}
		return p, closer(p, "redis"), nil
	case "postgres":
		p, err := memory.NewPostgresPersister(ctx, *configx.MustNew[memory.PostgresConfig]("POSTGRES"))
		if err != nil {
			return nil, noop, err
		}
		return p, closer(p, "postgres"), nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown memory backend %q", contractx.ErrValidation, backend)
	}
}

func newSessionStore(backend string, upstashClient func() (*upstash.Client, error)) (statex.Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "inmemory":
		return statex.NewMemoryStore(), nil
	case "upstash":
		client, err := upstashClient()
		if err != nil {
			return nil, err
		}
		return statex.NewUpstashStore(client)
	default:
		return nil, fmt.Errorf("%w: unknown session backend %q", contractx.ErrValidation, backend)
	}
}

func closer(c io.Closer, name string) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("studybuddy: close memory backend")
		}
	}
}
