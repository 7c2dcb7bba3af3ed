package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"telegram-channel-autopilot/internal/domain"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
	"telegram-channel-autopilot/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ContentGenerator = (*DeepSeekAdapter)(nil)

const (
	defaultDeepSeekBase  = "https://api.deepseek.com"
	defaultDeepSeekModel = "deepseek-chat"

	// The persona is fixed per deployment; per-bot variation lives in the
	// user prompt.
	systemPersona = "You are an autonomous AI agent posting futuristic, controversial but safe Telegram posts."
)

// DeepSeekAdapter implements adapter.ContentGenerator against the
// DeepSeek chat-completions API (OpenAI wire compatible). The API key is
// a call argument, not adapter state: each bot may override the
// process-wide default.
type DeepSeekAdapter struct {
	base    string
	httpc   *http.Client
	encoder *tiktoken.Tiktoken // best-effort prompt token metric, may be nil
}

func NewDeepSeekAdapter(baseURL string) *DeepSeekAdapter {
	if baseURL == "" {
		baseURL = defaultDeepSeekBase
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &DeepSeekAdapter{
		base:    baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		encoder: enc,
	}
}

func (a *DeepSeekAdapter) Generate(ctx context.Context, prompt, apiKey, model string) (string, error) {
	if apiKey == "" {
		return "", domain.ErrNoAPIKey
	}
	if model == "" {
		model = defaultDeepSeekModel
	}
	if a.encoder != nil {
		metrics.AddPromptTokens("deepseek", model, len(a.encoder.Encode(prompt, nil, nil)))
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(a.base),
		option.WithHTTPClient(a.httpc),
	)

	start := time.Now()
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPersona),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(500),
		TopP:        openai.Float(0.95),
	})
	metrics.ObserveGeneration("deepseek", err == nil, time.Since(start))
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			desc := apierr.Message
			if desc == "" {
				desc = err.Error()
			}
			return "", &domain.UpstreamError{Op: "deepseek.generate", Description: desc}
		}
		return "", &domain.TransportError{Op: "deepseek.generate", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &domain.UpstreamError{Op: "deepseek.generate", Description: "response has no choices"}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &domain.UpstreamError{Op: "deepseek.generate", Description: "empty completion content"}
	}
	return content, nil
}

// TestConnection performs a one-shot generation, used by the console to
// check an API key before saving it.
func (a *DeepSeekAdapter) TestConnection(ctx context.Context, apiKey string) error {
	_, err := a.Generate(ctx, `Say "API Connection Successful"`, apiKey, "")
	return err
}
