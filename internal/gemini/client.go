// Package gemini implements integration with Google's Gemini AI API.
// It summarizes chat windows, answers questions and composes songs and gifts.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/genai"

	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/threads"
)

// Client defines the AI operations used throughout the application.
type Client interface {
	// Summarize answers instruction about text (usually a rendered chat window).
	Summarize(ctx context.Context, instruction, text string) (string, error)
	// Chat continues a thread; the first turn is the system seed.
	Chat(ctx context.Context, turns []threads.Turn) (string, error)
	ComposeSong(ctx context.Context, instruction, text string) (*Song, error)
	ComposeGift(ctx context.Context, instruction, text string) (*Gift, error)
	// Transcribe returns the spoken text of an audio clip.
	Transcribe(ctx context.Context, instruction string, audio []byte, mimeType string) (string, error)
}

type sdkClient struct {
	genaiClient      *genai.Client
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
	timeout          time.Duration
}

// NewClient creates a new Gemini AI client with the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,

		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:      gi,
		log:              logger,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
		timeout:          cfg.Timeout,
	}, nil
}

func (c *sdkClient) withInstruction(instruction string) *genai.GenerateContentConfig {
	copyCfg := *c.contentConfig
	if instruction != "" {
		copyCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: instruction}}}
	}
	return &copyCfg
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	attempts := uint(c.maxRetries) + 1
	resp, err := retry.DoWithData(
		func() (*genai.GenerateContentResponse, error) {
			resp, err := c.genaiClient.Models.GenerateContent(ctx, c.defaultModelName, contents, cfg)
			if err != nil {
				var apiErr *genai.APIError
				if !errors.As(err, &apiErr) || !retriable(apiErr.Code) {
					return nil, retry.Unrecoverable(err)
				}
				return nil, err
			}
			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.WarnContext(ctx, "Retrying Gemini API call", "attempt", n+1, "max_attempts", attempts, "delay", c.retryDelay, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return resp, nil
}

func retriable(code int) bool {
	return code == 500 || code == 503
}

func (c *sdkClient) Summarize(ctx context.Context, instruction, text string) (string, error) {
	c.log.DebugContext(ctx, "Generating summary", "text_len", len(text))

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.generateContentWithRetries(ctx, contents, c.withInstruction(instruction))
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (c *sdkClient) Chat(ctx context.Context, turns []threads.Turn) (string, error) {
	var instruction string
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case threads.RoleSystem:
			instruction = t.Content
		case threads.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", errors.New("chat thread has no user turns")
	}

	c.log.DebugContext(ctx, "Generating chat reply", "turns", len(contents))
	copyCfg := c.withInstruction(instruction)
	copyCfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}

	resp, err := c.generateContentWithRetries(ctx, contents, copyCfg)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (c *sdkClient) ComposeSong(ctx context.Context, instruction, text string) (*Song, error) {
	raw, err := c.generateJSON(ctx, instruction+SongRequestSuffix, text, songSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compose song: %w", err)
	}
	return decodeSong(raw)
}

func (c *sdkClient) ComposeGift(ctx context.Context, instruction, text string) (*Gift, error) {
	raw, err := c.generateJSON(ctx, instruction+GiftRequestSuffix, text, giftSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to compose gift: %w", err)
	}
	return decodeGift(raw)
}

func (c *sdkClient) Transcribe(ctx context.Context, instruction string, audio []byte, mimeType string) (string, error) {
	c.log.DebugContext(ctx, "Transcribing audio", "bytes", len(audio), "mime_type", mimeType)

	resp, err := c.generateContentWithRetries(ctx, audioContents(audio, mimeType), c.withInstruction(instruction))
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return extractText(resp)
}

func audioContents(audio []byte, mimeType string) []*genai.Content {
	return []*genai.Content{genai.NewContentFromBytes(audio, mimeType, genai.RoleUser)}
}

func (c *sdkClient) generateJSON(ctx context.Context, instruction, text string, schema *genai.Schema) (string, error) {
	copyCfg := c.withInstruction(instruction)
	copyCfg.Tools = nil
	copyCfg.ResponseMIMEType = "application/json"
	copyCfg.ResponseSchema = schema

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := c.generateContentWithRetries(ctx, contents, copyCfg)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func decodeSong(raw string) (*Song, error) {
	var s Song
	if err := json.Unmarshal([]byte(stripFence(raw)), &s); err != nil {
		return nil, fmt.Errorf("invalid song JSON received: %w", err)
	}
	if strings.TrimSpace(s.Lyrics) == "" || strings.TrimSpace(s.Title) == "" {
		return nil, errors.New("song JSON is missing title or lyrics")
	}
	return &s, nil
}

func decodeGift(raw string) (*Gift, error) {
	var g Gift
	if err := json.Unmarshal([]byte(stripFence(raw)), &g); err != nil {
		return nil, fmt.Errorf("invalid gift JSON received: %w", err)
	}
	if strings.TrimSpace(g.DirectorName) == "" || strings.TrimSpace(g.Name) == "" {
		return nil, errors.New("gift JSON is missing director or gift name")
	}
	return &g, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("request blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonStop &&
			resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			return "", fmt.Errorf("no content returned, finish reason: %v", resp.Candidates[0].FinishReason)
		}
		return "", errors.New("empty content returned")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty text returned")
	}
	return text, nil
}
