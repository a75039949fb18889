package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiOracle judges proofs with Gemini, sending the image bytes inline.
type GeminiOracle struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewGeminiOracle(ctx context.Context, apiKey, model string, log *zap.Logger) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key not configured")
	}
	return newGeminiOracle(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model, log)
}

func newGeminiOracle(ctx context.Context, cfg *genai.ClientConfig, model string, log *zap.Logger) (*GeminiOracle, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiOracle{client: client, model: model, log: log}, nil
}

func (g *GeminiOracle) Judge(ctx context.Context, req OracleRequest) (string, error) {
	var system []string
	parts := make([]*genai.Part, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		parts = append(parts, genai.NewPartFromText(m.Content))
	}
	if len(req.Image) > 0 && req.ImageMIME != "" {
		parts = append(parts, genai.NewPartFromBytes(req.Image, req.ImageMIME))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &OracleHTTPError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return "", &OracleHTTPError{StatusCode: apiErrPtr.Code, Body: apiErrPtr.Message}
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", backoff.Permanent(errors.New("gemini returned no candidates"))
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" && !p.Thought {
			sb.WriteString(p.Text)
		}
	}
	reply := strings.TrimSpace(sb.String())
	g.log.Debug("[ORACLE] gemini completed", zap.String("model", g.model), zap.Int("reply_len", len(reply)))
	return reply, nil
}
