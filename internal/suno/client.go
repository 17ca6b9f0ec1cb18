// Package suno is a minimal client for the sunoapi.org music generation API.
// It submits generation tasks and reports their status as jobs.Result values.
package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Usernoise/chatd/internal/jobs"
	"github.com/Usernoise/chatd/internal/logger"
)

const (
	generatePath   = "/api/v1/generate"
	recordInfoPath = "/api/v1/generate/record-info"

	defaultTimeout     = 30 * time.Second
	defaultMaxFailures = 5
	defaultCooldown    = time.Minute
	maxBodyPreview     = 512
)

// ErrSubmit is returned when a generation task could not be created.
var ErrSubmit = errors.New("suno submission failed")

// Config configures the client.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	NegativeTags string
	CallbackURL  string
	Timeout      time.Duration
	MaxLyricsLen int
	MaxTitleLen  int

	// MaxFailures consecutive failed requests open the circuit for Cooldown.
	MaxFailures uint32
	Cooldown    time.Duration
}

// Request describes one song to generate.
type Request struct {
	Lyrics string
	Style  string
	Title  string
}

// Client talks to the Suno API. It is safe for concurrent use.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *slog.Logger
}

// NewClient creates a client. Every request is bounded by cfg.Timeout.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = defaultCooldown
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	log = log.With("component", "suno_client")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "suno",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		log:     log,
	}
}

type generateRequest struct {
	Prompt       string `json:"prompt"`
	Style        string `json:"style"`
	Title        string `json:"title"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	NegativeTags string `json:"negativeTags,omitempty"`
	CallBackURL  string `json:"callBackUrl"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type generateData struct {
	TaskID string `json:"taskId"`
}

type recordInfo struct {
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Response     struct {
		SunoData []struct {
			Title    string  `json:"title"`
			AudioURL string  `json:"audioUrl"`
			ImageURL string  `json:"imageUrl"`
			Duration float64 `json:"duration"`
		} `json:"sunoData"`
	} `json:"response"`
}

// Submit starts a generation task and returns its task id.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:       truncate(req.Lyrics, c.cfg.MaxLyricsLen),
		Style:        req.Style,
		Title:        truncate(req.Title, c.cfg.MaxTitleLen),
		CustomMode:   true,
		Instrumental: false,
		Model:        c.cfg.Model,
		NegativeTags: c.cfg.NegativeTags,
		CallBackURL:  c.cfg.CallbackURL,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrSubmit, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrSubmit, err)
	}

	env, err := c.do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmit, err)
	}

	var data generateData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.TaskID == "" {
		return "", fmt.Errorf("%w: response has no task id", ErrSubmit)
	}

	c.log.InfoContext(ctx, "Music generation task submitted", "task_id", data.TaskID, "title", req.Title)
	return data.TaskID, nil
}

// Status reports the state of a task. Every failure to learn the state
// wraps jobs.ErrTransient.
func (c *Client) Status(ctx context.Context, taskID string) (jobs.Result, error) {
	u := c.cfg.BaseURL + recordInfoPath + "?" + url.Values{"taskId": {taskID}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return jobs.Result{}, fmt.Errorf("failed to build status request: %w", err)
	}

	env, err := c.do(httpReq)
	if err != nil {
		return jobs.Result{}, fmt.Errorf("%w: %w", jobs.ErrTransient, err)
	}

	var info recordInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		return jobs.Result{}, fmt.Errorf("%w: failed to decode task status: %w", jobs.ErrTransient, err)
	}

	tracks := make([]jobs.Track, 0, len(info.Response.SunoData))
	for _, d := range info.Response.SunoData {
		tracks = append(tracks, jobs.Track{
			Title:    d.Title,
			AudioURL: d.AudioURL,
			ImageURL: d.ImageURL,
			Duration: d.Duration,
		})
	}

	c.log.DebugContext(ctx, "Task status", "task_id", taskID, "status", info.Status, "tracks", len(tracks))
	return jobs.Classify(info.Status, tracks, info.ErrorMessage), nil
}

// do sends the request through the circuit breaker and unwraps the API
// envelope. Every failure here is worth retrying: transport errors, HTTP
// errors, envelope codes other than 200 and an open circuit.
func (c *Client) do(req *http.Request) (*envelope, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*envelope), nil
}

func (c *Client) send(req *http.Request) (*envelope, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), maxBodyPreview))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Code != http.StatusOK {
		return nil, fmt.Errorf("api error code %d: %s", env.Code, env.Msg)
	}
	return &env, nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
