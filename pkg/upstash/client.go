package upstash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	maxResponseSizeBytes = 2 << 20
	defaultTimeout       = 10 * time.Second
)

type Config struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client executes Redis commands against the Upstash REST endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Response struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func New(cfg Config, opts ...Option) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	token := strings.TrimSpace(cfg.Token)
	switch {
	case endpoint == "":
		return nil, errors.New("upstash: missing REST url")
	case token == "":
		return nil, errors.New("upstash: missing REST token")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("upstash: bad REST url %q: %w", endpoint, err)
	}

	c := &Client{
		baseURL:    endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	if cfg.Timeout > 0 {
		c.httpClient.Timeout = cfg.Timeout
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// GetString returns the string stored at key. ok is false when the key is
// absent.
func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.Exec(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}
	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal(result, &value); err != nil {
		return "", false, fmt.Errorf("decode redis payload: %w", err)
	}
	return value, true, nil
}

// Set stores value at key. A zero ttl keeps the key forever.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("upstash: negative ttl %s", ttl)
	}
	cmd := []any{"SET", key, value}
	if ttl > 0 {
		cmd = append(cmd, "EX", TTLSeconds(ttl))
	}
	_, err := c.Exec(ctx, cmd...)
	return err
}

func (c *Client) Del(ctx context.Context, key string) error {
	_, err := c.Exec(ctx, "DEL", key)
	return err
}

func (c *Client) Exec(ctx context.Context, command ...any) (*Response, error) {
	if c == nil {
		return nil, errors.New("upstash: client not configured")
	}
	if len(command) == 0 {
		return nil, errors.New("upstash: no command")
	}
	name := fmt.Sprint(command[0])

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("upstash %s: encode: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstash %s: %w", name, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstash %s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("upstash %s: read body: %w", name, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("upstash %s: status %d: %s", name, resp.StatusCode, bytes.TrimSpace(raw))
	}

	out := &Response{}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("upstash %s: decode: %w", name, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("upstash %s: %s", name, out.Error)
	}
	return out, nil
}

// TTLSeconds rounds ttl up to whole seconds, minimum 1.
func TTLSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
