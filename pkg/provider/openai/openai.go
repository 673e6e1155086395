package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"mythbuster/pkg/config"
	providertypes "mythbuster/pkg/provider/types"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const providerName = "openai"

// Client calls an OpenAI-compatible Chat Completions endpoint. The default
// base URL points at Groq.
type Client struct {
	client         osdk.Client
	model          string
	requestTimeout time.Duration
	log            *slog.Logger
}

// New builds a client from LLM settings.
func New(cfg config.LLMConfig) (*Client, error) {
	return newClient(cfg)
}

func newClient(cfg config.LLMConfig, extra ...option.RequestOption) (*Client, error) {
	apiKey := resolveAPIKey(cfg)
	if apiKey == "" {
		return nil, fmt.Errorf("llm api key is required: set %s or OPENAI_API_KEY", apiKeyEnvName(cfg))
	}

	model, err := normalizeModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if organization := strings.TrimSpace(cfg.Organization); organization != "" {
		opts = append(opts, option.WithOrganization(organization))
	}
	if project := strings.TrimSpace(cfg.Project); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	requestTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if requestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(requestTimeout))
	}
	opts = append(opts, extra...)

	return &Client{
		client:         osdk.NewClient(opts...),
		model:          model,
		requestTimeout: requestTimeout,
		log:            slog.Default().With("component", "provider.openai"),
	}, nil
}

// Health lists models to confirm the endpoint and key are usable.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := c.log.With("operation", "health")
	startedAt := time.Now()
	log.Debug("provider request started")

	if _, err := c.client.Models.List(ctx); err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds())

	return nil
}

// Complete runs one system+user chat completion. An empty request model uses
// the configured one.
func (c *Client) Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.CompletionResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	log := c.log.With("operation", "complete")
	startedAt := time.Now()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return providertypes.CompletionResult{}, errors.New("prompt is required")
	}

	model := c.model
	if strings.TrimSpace(req.Model) != "" {
		normalized, err := normalizeModel(req.Model)
		if err != nil {
			return providertypes.CompletionResult{}, err
		}
		model = normalized
	}

	messages := make([]osdk.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, osdk.SystemMessage(system))
	}
	messages = append(messages, osdk.UserMessage(prompt))

	params := osdk.ChatCompletionNewParams{
		Model:       osdk.ChatModel(model),
		Messages:    messages,
		Temperature: osdk.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = osdk.Int(int64(req.MaxTokens))
	}
	if req.TopP > 0 {
		params.TopP = osdk.Float(req.TopP)
	}

	log.Debug("provider request started", "model", model, "prompt_length", len(prompt))

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.CompletionResult{}, fmt.Errorf("completion failed: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no choices")
		return providertypes.CompletionResult{}, errors.New("completion returned no choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no output text")
		return providertypes.CompletionResult{}, errors.New("completion succeeded but returned no text")
	}
	log.Debug("provider request completed", "duration_ms", time.Since(startedAt).Milliseconds(), "response_length", len(text))

	result := providertypes.CompletionResult{
		Text:     text,
		Provider: providerName,
		Model:    model,
	}

	usage := providertypes.TokenUsage{
		InputTokens:     completion.Usage.PromptTokens,
		OutputTokens:    completion.Usage.CompletionTokens,
		TotalTokens:     completion.Usage.TotalTokens,
		ReasoningTokens: completion.Usage.CompletionTokensDetails.ReasoningTokens,
	}
	if !usage.IsZero() {
		result.Usage = &usage
	}

	return result, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.requestTimeout)
}

func apiKeyEnvName(cfg config.LLMConfig) string {
	if name := strings.TrimSpace(cfg.APIKeyEnv); name != "" {
		return name
	}

	return config.DefaultAPIKeyEnv
}

func resolveAPIKey(cfg config.LLMConfig) string {
	if apiKey := strings.TrimSpace(os.Getenv(apiKeyEnvName(cfg))); apiKey != "" {
		return apiKey
	}

	return strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
}

// normalizeModel strips an optional "openai/" or "groq/" routing prefix.
// Other slashes are part of the model id (for example "meta-llama/...").
func normalizeModel(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("model is required")
	}

	for _, prefix := range []string{"openai/", "groq/"} {
		if trimmed, ok := strings.CutPrefix(model, prefix); ok {
			trimmed = strings.TrimSpace(trimmed)
			if trimmed == "" {
				return "", errors.New("model is invalid")
			}
			return trimmed, nil
		}
	}

	return model, nil
}
