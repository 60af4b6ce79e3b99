package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/Tharun007-TK/studybuddy-ai-agent/agent/contract"
	openrouterx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/openrouter"
)

type modelFunc func(ctx context.Context, prompt string, input map[string]any) (string, error)

func (f modelFunc) Generate(ctx context.Context, prompt string, input map[string]any) (string, error) {
	return f(ctx, prompt, input)
}

type fakeChatModel struct {
	got []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.got = input
	return schema.AssistantMessage(`{"ok":true}`, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestParseJSONToleratesFencesAndProse(t *testing.T) {
	t.Parallel()

	type out struct {
		Level string `json:"knowledge_level"`
	}
	cases := []string{
		`{"knowledge_level":"novice"}`,
		"```json\n{\"knowledge_level\":\"novice\"}\n```",
		"Here you go:\n{\"knowledge_level\":\"novice\"}\nGood luck!",
	}
	for _, raw := range cases {
		got, err := ParseJSON[out](context.Background(), raw)
		if err != nil {
			t.Fatalf("ParseJSON(%q) error = %v", raw, err)
		}
		if got.Level != "novice" {
			t.Fatalf("ParseJSON(%q) = %#v", raw, got)
		}
	}
}

func TestParseJSONSchemaViolation(t *testing.T) {
	t.Parallel()

	type out struct{ A int }
	for _, raw := range []string{"no json here", `{"A": "not a number"}`} {
		if _, err := ParseJSON[out](context.Background(), raw); !errors.Is(err, contractx.ErrSchemaViolation) {
			t.Fatalf("ParseJSON(%q) error = %v, want ErrSchemaViolation", raw, err)
		}
	}
}

func TestStructuredPropagatesModelError(t *testing.T) {
	t.Parallel()

	boom := fmt.Errorf("%w: boom", contractx.ErrUpstream)
	m := modelFunc(func(context.Context, string, map[string]any) (string, error) { return "", boom })
	_, err := Structured[map[string]any](context.Background(), m, "p", nil)
	if !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("Structured() error = %v, want ErrUpstream", err)
	}
}

func TestGuardMapsTimeout(t *testing.T) {
	t.Parallel()

	slow := modelFunc(func(ctx context.Context, _ string, _ map[string]any) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	m := NewGuard(GuardConfig{Timeout: 10 * time.Millisecond}).Model("slow", slow)
	_, err := m.Generate(context.Background(), "p", nil)
	if !errors.Is(err, contractx.ErrUpstreamTimeout) {
		t.Fatalf("Generate() error = %v, want ErrUpstreamTimeout", err)
	}
}

func TestGuardMapsFailureAndOpensBreaker(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	failing := modelFunc(func(context.Context, string, map[string]any) (string, error) {
		calls.Add(1)
		return "", errors.New("502 bad gateway")
	})
	m := NewGuard(GuardConfig{MaxFailures: 2, Cooldown: time.Hour}).Model("failing", failing)

	for i := 0; i < 2; i++ {
		if _, err := m.Generate(context.Background(), "p", nil); !errors.Is(err, contractx.ErrUpstream) {
			t.Fatalf("call %d error = %v, want ErrUpstream", i, err)
		}
	}
	_, err := m.Generate(context.Background(), "p", nil)
	if !errors.Is(err, contractx.ErrUpstream) {
		t.Fatalf("open breaker error = %v, want ErrUpstream", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("open breaker must not reach the model, calls = %d", calls.Load())
	}
}

func TestGuardPassesSuccess(t *testing.T) {
	t.Parallel()

	var observed string
	ok := modelFunc(func(context.Context, string, map[string]any) (string, error) { return "hello", nil })
	m := NewGuard(GuardConfig{
		Timeout:     time.Second,
		MaxFailures: 1,
		OnCall:      func(name string, _ time.Duration, _ error) { observed = name },
	}).Model("ok", ok)
	got, err := m.Generate(context.Background(), "p", nil)
	if err != nil || got != "hello" {
		t.Fatalf("Generate() = %q, %v", got, err)
	}
	if observed != "ok" {
		t.Fatalf("OnCall name = %q", observed)
	}
}

type lookupFunc func(ctx context.Context, q string) ([]contractx.Resource, error)

func (f lookupFunc) Search(ctx context.Context, q string) ([]contractx.Resource, error) { return f(ctx, q) }

func TestGuardLookup(t *testing.T) {
	t.Parallel()

	l := NewGuard(GuardConfig{}).Lookup("lookup", lookupFunc(func(context.Context, string) ([]contractx.Resource, error) {
		return []contractx.Resource{{Title: "t"}}, nil
	}))
	got, err := l.Search(context.Background(), "q")
	if err != nil || len(got) != 1 {
		t.Fatalf("Search() = %#v, %v", got, err)
	}
}

func TestEinoModelSendsSystemPromptVerbatim(t *testing.T) {
	t.Parallel()

	chat := &fakeChatModel{}
	m, err := NewEinoModel(context.Background(), chat, "test.model_graph")
	if err != nil {
		t.Fatalf("NewEinoModel() error = %v", err)
	}
	const prompt = `Respond with {"a": 1}`
	got, err := m.Generate(context.Background(), prompt, map[string]any{"topic": "algebra"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("Generate() = %q", got)
	}
	if len(chat.got) != 2 || chat.got[0].Content != prompt {
		t.Fatalf("unexpected messages: %#v", chat.got)
	}
	if !strings.Contains(chat.got[1].Content, `"topic":"algebra"`) {
		t.Fatalf("user message = %q", chat.got[1].Content)
	}
}

func TestCompletionModelGenerate(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hi there"}}]}`)
	}))
	t.Cleanup(server.Close)

	maxTokens := 100
	cfg := openrouterx.Config{BaseURL: server.URL, APIKey: "k", Model: "test/model", MaxCompletionToken: &maxTokens, Temperature: 0.2}
	m, err := NewCompletionModel(openrouterx.NewClient(cfg), cfg)
	if err != nil {
		t.Fatalf("NewCompletionModel() error = %v", err)
	}
	got, err := m.Generate(context.Background(), "system prompt", map[string]any{"q": 1})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "hi there" {
		t.Fatalf("Generate() = %q", got)
	}
	if gotBody["model"] != "test/model" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %#v", gotBody["messages"])
	}
}

func TestConfigOpenRouterFor(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey: "k", Model: "default", Temperature: 0.5,
		QuizGeneratorModel: "quiz-model", QuizGeneratorTemperature: 0.1,
		ExplainerTemperature: -1,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	quiz := cfg.OpenRouterFor(contractx.AgentTypeQuizGenerator)
	if quiz.Model != "quiz-model" || quiz.Temperature != 0.1 {
		t.Fatalf("quiz config = %#v", quiz)
	}
	explain := cfg.OpenRouterFor(contractx.AgentTypeExplainer)
	if explain.Model != "default" || explain.Temperature != 0.5 {
		t.Fatalf("explainer config = %#v", explain)
	}

	cfg.Client = "carrier-pigeon"
	if err := cfg.Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
