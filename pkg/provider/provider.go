package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mythbuster/pkg/config"
	providerfantasy "mythbuster/pkg/provider/fantasy"
	provideropenai "mythbuster/pkg/provider/openai"
	providertypes "mythbuster/pkg/provider/types"
)

// Client is an LLM backend able to run one fact-check completion.
type Client interface {
	Health(ctx context.Context) error
	Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.CompletionResult, error)
}

// New returns the backend named by cfg.LLM.Provider, compared case-insensitively.
// An empty provider means the OpenAI-compatible Chat Completions client.
func New(cfg *config.Config) (Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	providerID := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if providerID == "" {
		providerID = config.ProviderOpenAI
	}

	slog.Default().With("component", "provider.factory").Debug("Resolving provider client", "provider", providerID, "model", cfg.LLM.Model)

	switch providerID {
	case config.ProviderOpenAI:
		return provideropenai.New(cfg.LLM)
	case config.ProviderFantasy:
		return providerfantasy.New(cfg.LLM)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
}
