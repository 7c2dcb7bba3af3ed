package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
	"telegram-channel-autopilot/internal/infra/metrics"
)

var _ adapter.ContentGenerator = (*GeminiAdapter)(nil)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiAdapter is the alternative content provider, selected with
// ai.provider=gemini. A client for the process-wide key is kept; bots
// with a key override get an ad-hoc client per call.
type GeminiAdapter struct {
	cfgKey string
	client *genai.Client
}

func NewGeminiAdapter(ctx context.Context, apiKey string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return &GeminiAdapter{}, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{cfgKey: apiKey, client: c}, nil
}

func (g *GeminiAdapter) Generate(ctx context.Context, prompt, apiKey, model string) (string, error) {
	if apiKey == "" {
		return "", domain.ErrNoAPIKey
	}
	if model == "" {
		model = defaultGeminiModel
	}

	cli := g.client
	if apiKey != g.cfgKey || cli == nil {
		var err error
		cli, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return "", &domain.TransportError{Op: "gemini.generate", Err: err}
		}
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPersona}}},
		Temperature:       genai.Ptr[float32](0.7),
		TopP:              genai.Ptr[float32](0.95),
		MaxOutputTokens:   500,
	}

	start := time.Now()
	resp, err := cli.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	metrics.ObserveGeneration("gemini", err == nil, time.Since(start))
	if err != nil {
		var aerr genai.APIError
		if errors.As(err, &aerr) {
			return "", &domain.UpstreamError{Op: "gemini.generate", Description: aerr.Message}
		}
		return "", &domain.TransportError{Op: "gemini.generate", Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &domain.UpstreamError{Op: "gemini.generate", Description: "empty completion content"}
	}
	return text, nil
}

// TestConnection performs a one-shot generation, used by the console to
// check an API key before saving it.
func (g *GeminiAdapter) TestConnection(ctx context.Context, apiKey string) error {
	_, err := g.Generate(ctx, `Say "API Connection Successful"`, apiKey, "")
	return err
}
