package factcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	providertypes "mythbuster/pkg/provider/types"
)

// FallbackText is returned to the user when the completion call fails.
const FallbackText = "I'm sorry, I couldn't fact-check this claim right now. Please try again later."

// SystemInstruction frames the model as a fact-checker.
const SystemInstruction = "You are an expert fact-checker. Analyze claims objectively, provide evidence-based responses, and cite reliable sources when possible. Be concise but thorough."

const (
	DefaultModel       = "llama-3.1-8b-instant"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 500
	DefaultTopP        = 0.9
)

// Request is one claim to be fact-checked.
type Request struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the outcome of one fact-check.
//
// Confidence is nil when unknown. Fallback marks results produced without a
// usable completion.
type Result struct {
	OriginalMessage string                     `json:"original_message"`
	Text            string                     `json:"fact_check_result"`
	Confidence      *float64                   `json:"confidence_score,omitempty"`
	Sources         []string                   `json:"sources"`
	Safe            bool                       `json:"is_safe_to_process"`
	Fallback        bool                       `json:"fallback,omitempty"`
	Usage           *providertypes.TokenUsage `json:"usage,omitempty"`
}

// Completer is the LLM completion port used by the evaluator.
type Completer interface {
	Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.CompletionResult, error)
}

// Options tunes the completion call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// DefaultOptions returns the low-randomness, bounded-length generation settings.
func DefaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
	}
}

// Evaluator runs claims through a Completer and scores the answer.
type Evaluator struct {
	completer Completer
	opts      Options
	log       *slog.Logger
}

// NewEvaluator builds an evaluator. A zero Options value means DefaultOptions;
// otherwise only the unset model, token limit and top_p are filled in.
func NewEvaluator(completer Completer, opts Options, log *slog.Logger) (*Evaluator, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if log == nil {
		log = slog.Default()
	}

	defaults := DefaultOptions()
	if opts == (Options{}) {
		opts = defaults
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = defaults.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.TopP <= 0 {
		opts.TopP = defaults.TopP
	}
	if opts.Temperature < 0 {
		opts.Temperature = defaults.Temperature
	}

	return &Evaluator{
		completer: completer,
		opts:      opts,
		log:       log.With("component", "factcheck.evaluator"),
	}, nil
}

// Evaluate fact-checks one request. It never returns an error: completion
// failures and panics yield the fallback result.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (result Result) {
	log := e.log.With("message_id", req.MessageID)
	startedAt := time.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error("Fact-check panicked", "panic", fmt.Sprint(recovered))
			result = fallbackResult(req)
		}
	}()

	completion, err := e.completer.Complete(ctx, providertypes.CompletionRequest{
		System:      SystemInstruction,
		Prompt:      BuildPrompt(req.Message),
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
		TopP:        e.opts.TopP,
	})
	if err != nil {
		log.Error("Fact-check completion failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return fallbackResult(req)
	}

	text := strings.TrimSpace(completion.Text)
	if text == "" {
		log.Error("Fact-check completion returned no text", "duration_ms", time.Since(startedAt).Milliseconds())
		return fallbackResult(req)
	}

	confidence := Confidence(text)
	sources := ExtractSources(text)
	log.Info("Fact-check completed",
		"sender", req.Sender,
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"confidence", confidence,
		"sources", len(sources),
	)

	return Result{
		OriginalMessage: req.Message,
		Text:            text,
		Confidence:      &confidence,
		Sources:         sources,
		Safe:            true,
		Usage:           completion.Usage,
	}
}

func fallbackResult(req Request) Result {
	zero := 0.0
	return Result{
		OriginalMessage: req.Message,
		Text:            FallbackText,
		Confidence:      &zero,
		Sources:         []string{},
		Safe:            true,
		Fallback:        true,
	}
}
