package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxOracleResponseBytes = 4 * 1024 * 1024

type OpenRouterConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	SiteURL  string
	SiteName string
}

// OpenRouterOracle sends chat completions to OpenRouter. Retries belong to
// RetryingOracle; this client makes exactly one request per call.
type OpenRouterOracle struct {
	cfg        OpenRouterConfig
	httpClient *http.Client
	log        *zap.Logger
}

func NewOpenRouterOracle(cfg OpenRouterConfig, httpClient *http.Client, log *zap.Logger) *OpenRouterOracle {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4o-mini"
	}
	return &OpenRouterOracle{cfg: cfg, httpClient: httpClient, log: log}
}

type openRouterContentPart struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openRouterRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func (o *OpenRouterOracle) Judge(ctx context.Context, req OracleRequest) (string, error) {
	if o.cfg.APIKey == "" {
		return "", backoff.Permanent(errors.New("openrouter API key not configured"))
	}
	start := time.Now()

	body, err := json.Marshal(openRouterRequest{
		Model:       o.cfg.Model,
		Messages:    o.messages(req),
		Temperature: 0.1,
		MaxTokens:   512,
	})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(o.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	if o.cfg.SiteURL != "" {
		httpReq.Header.Set("HTTP-Referer", o.cfg.SiteURL)
	}
	if o.cfg.SiteName != "" {
		httpReq.Header.Set("X-Title", o.cfg.SiteName)
	}

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxOracleResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read openrouter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &OracleHTTPError{StatusCode: resp.StatusCode, Body: truncateRunes(strings.TrimSpace(string(raw)), 300)}
	}

	var out openRouterResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode openrouter response: %w", err))
	}
	if out.Error != nil {
		return "", backoff.Permanent(fmt.Errorf("openrouter error: %s", out.Error.Message))
	}
	if len(out.Choices) == 0 {
		return "", backoff.Permanent(errors.New("openrouter returned no choices"))
	}

	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	o.log.Debug("[ORACLE] openrouter completed",
		zap.String("model", o.cfg.Model),
		zap.Duration("took", time.Since(start)),
		zap.Int("reply_len", len(reply)),
	)
	return reply, nil
}

// messages attaches the proof image to the last user turn so vision models
// can look at it; the URL also stays in the text for text-only models.
func (o *OpenRouterOracle) messages(req OracleRequest) []openRouterMessage {
	lastUser := -1
	for i, m := range req.Messages {
		if m.Role == "user" {
			lastUser = i
		}
	}
	msgs := make([]openRouterMessage, 0, len(req.Messages))
	for i, m := range req.Messages {
		if i == lastUser && req.ImageURL != "" {
			msgs = append(msgs, openRouterMessage{Role: m.Role, Content: []openRouterContentPart{
				{Type: "text", Text: m.Content},
				{Type: "image_url", ImageURL: &openRouterImageURL{URL: req.ImageURL}},
			}})
			continue
		}
		msgs = append(msgs, openRouterMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}
