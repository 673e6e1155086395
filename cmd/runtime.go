package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/config"
	"mythbuster/pkg/factcheck"
	"mythbuster/pkg/logger"
	"mythbuster/pkg/pipeline"
	"mythbuster/pkg/provider"
	providertypes "mythbuster/pkg/provider/types"
)

// runtime bundles what every command needs to answer a message.
type runtime struct {
	cfg       *config.Config
	log       *slog.Logger
	client    provider.Client
	processor *pipeline.Processor
}

// loadConfigAndLogger installs the process logger. Quiet mode keeps info logs
// off the terminal while a full-screen UI owns it.
func loadConfigAndLogger(quiet bool) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if quiet && !cfg.Debug {
		cfg.Logging.Level = "error"
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, appLogger, nil
}

func newRuntime(cfg *config.Config, events bus.Publisher, log *slog.Logger) (*runtime, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

	client, err := provider.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}

	return assembleRuntime(cfg, client, events, log)
}

// newLocalRuntime is the runtime for terminal commands. The provider is built
// on the first completion, so conversational messages work without an API key.
func newLocalRuntime(cfg *config.Config, log *slog.Logger) (*runtime, error) {
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}

	client := &lazyClient{build: func() (provider.Client, error) { return provider.New(cfg) }}
	return assembleRuntime(cfg, client, nil, log)
}

func assembleRuntime(cfg *config.Config, client provider.Client, events bus.Publisher, log *slog.Logger) (*runtime, error) {
	processor, err := newProcessor(client, cfg.LLM, events, log)
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, log: log, client: client, processor: processor}, nil
}

// lazyClient defers provider construction until first use and remembers the
// outcome, including a construction error.
type lazyClient struct {
	build  func() (provider.Client, error)
	once   sync.Once
	client provider.Client
	err    error
}

func (c *lazyClient) resolve() (provider.Client, error) {
	c.once.Do(func() {
		c.client, c.err = c.build()
		if c.err != nil {
			c.err = fmt.Errorf("initialize provider: %w", c.err)
		}
	})
	return c.client, c.err
}

func (c *lazyClient) Health(ctx context.Context) error {
	client, err := c.resolve()
	if err != nil {
		return err
	}
	return client.Health(ctx)
}

func (c *lazyClient) Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.CompletionResult, error) {
	client, err := c.resolve()
	if err != nil {
		return providertypes.CompletionResult{}, err
	}
	return client.Complete(ctx, req)
}

func newProcessor(completer factcheck.Completer, llm config.LLMConfig, events bus.Publisher, log *slog.Logger) (*pipeline.Processor, error) {
	evaluator, err := factcheck.NewEvaluator(completer, evaluatorOptions(llm), log)
	if err != nil {
		return nil, fmt.Errorf("initialize evaluator: %w", err)
	}

	processor, err := pipeline.NewProcessor(evaluator, events, log)
	if err != nil {
		return nil, fmt.Errorf("initialize pipeline: %w", err)
	}

	return processor, nil
}

func evaluatorOptions(llm config.LLMConfig) factcheck.Options {
	return factcheck.Options{
		Model:       llm.Model,
		Temperature: llm.Temperature,
		MaxTokens:   llm.MaxTokens,
		TopP:        llm.TopP,
	}
}

// logEvents mirrors pipeline events into the log until the channel closes.
func logEvents(log *slog.Logger, events <-chan bus.Event) {
	for event := range events {
		logEvent(log, event)
	}
}

func logEvent(log *slog.Logger, event bus.Event) {
	attrs := []any{
		"type", event.Type,
		"request_id", event.RequestID,
		"channel", event.Channel,
	}
	for key, value := range event.Payload {
		attrs = append(attrs, key, value)
	}

	switch event.Type {
	case bus.EventPipelineFailed, bus.EventReplyFailed:
		log.Error("Pipeline event", append(attrs, "error", event.Error)...)
	case bus.EventFactCheckFailed:
		log.Warn("Pipeline event", attrs...)
	case bus.EventReplySent, bus.EventFactCheckCompleted:
		log.Info("Pipeline event", attrs...)
	default:
		log.Debug("Pipeline event", attrs...)
	}
}

func providerHealth(ctx context.Context, client provider.Client, log *slog.Logger) {
	if err := client.Health(ctx); err != nil {
		log.Warn("Provider health check failed", "error", err)
	}
}
