package upstash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler func(cmd []any) string) (*Client, *[]any) {
	t.Helper()

	var gotCommand []any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotCommand); err != nil {
			t.Errorf("decode command: %v", err)
		}
		fmt.Fprint(w, handler(gotCommand))
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{URL: server.URL, Token: "token"}, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client, &gotCommand
}

func TestNewRequiresURLAndToken(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Token: "t"}); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := New(Config{URL: "https://example.upstash.io"}); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{URL: "not a url", Token: "t"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSetAddsExpiry(t *testing.T) {
	t.Parallel()

	client, got := newTestClient(t, func([]any) string { return `{"result":"OK"}` })
	if err := client.Set(context.Background(), "k", "v", 1500*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	cmd := *got
	if len(cmd) != 5 || cmd[0] != "SET" || cmd[1] != "k" || cmd[2] != "v" || cmd[3] != "EX" {
		t.Fatalf("unexpected command: %#v", cmd)
	}
	// JSON numbers decode as float64.
	if cmd[4] != float64(2) {
		t.Fatalf("EX = %v, want 2", cmd[4])
	}
}

func TestSetWithoutTTL(t *testing.T) {
	t.Parallel()

	client, got := newTestClient(t, func([]any) string { return `{"result":"OK"}` })
	if err := client.Set(context.Background(), "k", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(*got) != 3 {
		t.Fatalf("unexpected command: %#v", *got)
	}
}

func TestGetStringMissingKey(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func([]any) string { return `{"result":null}` })
	_, ok, err := client.GetString(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetString() error = %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing key")
	}
}

func TestExecSurfacesRedisError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func([]any) string { return `{"error":"WRONGTYPE"}` })
	if _, err := client.Exec(context.Background(), "GET", "k"); err == nil || err.Error() != "upstash GET: WRONGTYPE" {
		t.Fatalf("Exec() error = %v, want WRONGTYPE", err)
	}
}

func TestTTLSeconds(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]int64{
		0:                       1,
		500 * time.Millisecond:  1,
		time.Second:             1,
		1001 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for in, want := range cases {
		if got := TTLSeconds(in); got != want {
			t.Fatalf("TTLSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}
