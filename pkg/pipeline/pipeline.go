package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/classifier"
	"mythbuster/pkg/compose"
	"mythbuster/pkg/factcheck"
	providertypes "mythbuster/pkg/provider/types"

	"github.com/google/uuid"
)

// Metadata keys attached to every reply.
const (
	MetaRequestIDKey  = bus.MetadataRequestIDKey
	MetaRouteKey      = "route"
	MetaSafeKey       = "safe_to_process"
	MetaConfidenceKey = "confidence"
	MetaSourcesKey    = "sources"
	MetaFallbackKey   = "fallback"
	MetaMediaKey      = "media"
)

// RouteMedia labels replies produced by the media check, which runs before
// classification.
const RouteMedia classifier.Route = "media"

// Status tags how a reply was produced.
type Status string

const (
	// StatusReplied means the pipeline produced its normal reply.
	StatusReplied Status = "replied"
	// StatusFallback means a stage failed and the reply is the apology.
	StatusFallback Status = "fallback"
)

// Evaluator is the fact-check stage.
type Evaluator interface {
	Evaluate(ctx context.Context, req factcheck.Request) factcheck.Result
}

// Outcome is the tagged result of processing one inbound message. Reply is
// always populated.
type Outcome struct {
	RequestID string
	Status    Status
	Route     classifier.Route
	Safe      bool
	Result    *factcheck.Result
	Reply     bus.OutboundMessage
	Err       error
}

// Processor runs inbound messages through media check, classification,
// fact-checking and composition. It holds no per-request state and is safe for
// concurrent use.
type Processor struct {
	evaluator Evaluator
	events    bus.Publisher
	log       *slog.Logger
	now       func() time.Time
}

// NewProcessor builds a processor. The publisher is optional.
func NewProcessor(evaluator Evaluator, events bus.Publisher, log *slog.Logger) (*Processor, error) {
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Processor{
		evaluator: evaluator,
		events:    events,
		log:       log.With("component", "pipeline.processor"),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Handle adapts Process to the channel handler signature. The reply is always
// returned; the error reports a recovered pipeline failure.
func (p *Processor) Handle(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	outcome := p.Process(ctx, inbound)
	return outcome.Reply, outcome.Err
}

// Process produces exactly one reply for an inbound message. Panics in any
// stage are recovered into a StatusFallback outcome carrying the apology.
func (p *Processor) Process(ctx context.Context, inbound bus.InboundMessage) (outcome Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}

	requestID := strings.TrimSpace(inbound.MessageID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	log := p.log.With("request_id", requestID, "channel", inbound.Channel, "chat_id", inbound.ChatID)
	startedAt := time.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("pipeline panic: %v", recovered)
			log.Error("Pipeline failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
			outcome = p.fallbackOutcome(inbound, requestID, outcome.Route, err)
			p.publish(ctx, inbound, requestID, bus.EventPipelineFailed, nil, err)
		}
	}()

	log.Info("Message received",
		"sender", inbound.SenderID,
		"has_media", inbound.HasMedia,
		"content", inbound.Content,
	)
	p.publish(ctx, inbound, requestID, bus.EventMessageReceived, map[string]string{
		MetaMediaKey: strconv.FormatBool(inbound.HasMedia),
	}, nil)

	if inbound.HasMedia {
		outcome = Outcome{RequestID: requestID, Status: StatusReplied, Route: RouteMedia}
		outcome.Reply = p.reply(inbound, requestID, RouteMedia, compose.MediaNotice(inbound.Content), map[string]string{
			MetaMediaKey: "true",
		})
		p.publish(ctx, inbound, requestID, bus.EventMessageClassified, map[string]string{MetaRouteKey: string(RouteMedia)}, nil)
		return outcome
	}

	route := classifier.Classify(inbound.Content)
	safe := classifier.IsSafeToProcess(inbound.Content)
	outcome = Outcome{RequestID: requestID, Status: StatusReplied, Route: route, Safe: safe}

	log.Debug("Message classified", "route", route, "safe_to_process", safe)
	p.publish(ctx, inbound, requestID, bus.EventMessageClassified, map[string]string{
		MetaRouteKey: string(route),
		MetaSafeKey:  strconv.FormatBool(safe),
	}, nil)

	if route != classifier.RouteFactCheck {
		outcome.Reply = p.reply(inbound, requestID, route, compose.Compose(route, nil), map[string]string{
			MetaSafeKey: strconv.FormatBool(safe),
		})
		log.Info("Conversational reply composed", "route", route, "duration_ms", time.Since(startedAt).Milliseconds())
		return outcome
	}

	result := p.evaluator.Evaluate(ctx, factcheck.NewRequest(inbound, p.now()))
	outcome.Result = &result

	metadata := resultMetadata(result)
	metadata[MetaSafeKey] = strconv.FormatBool(safe)
	outcome.Reply = p.reply(inbound, requestID, route, compose.Compose(route, &result), metadata)

	if result.Fallback {
		p.publish(ctx, inbound, requestID, bus.EventFactCheckFailed, nil, nil)
	} else {
		p.publish(ctx, inbound, requestID, bus.EventFactCheckCompleted, map[string]string{
			MetaConfidenceKey: metadata[MetaConfidenceKey],
			MetaSourcesKey:    metadata[MetaSourcesKey],
		}, nil)
	}

	log.Info("Fact-check reply composed",
		"fallback", result.Fallback,
		"sources", len(result.Sources),
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)

	return outcome
}

func (p *Processor) fallbackOutcome(inbound bus.InboundMessage, requestID string, route classifier.Route, err error) Outcome {
	reply := p.reply(inbound, requestID, route, compose.Apology(), map[string]string{MetaFallbackKey: "true"})
	reply.Error = err.Error()

	return Outcome{
		RequestID: requestID,
		Status:    StatusFallback,
		Route:     route,
		Reply:     reply,
		Err:       err,
	}
}

func (p *Processor) reply(inbound bus.InboundMessage, requestID string, route classifier.Route, content string, extra map[string]string) bus.OutboundMessage {
	metadata := map[string]string{
		MetaRequestIDKey: requestID,
	}
	if route != "" {
		metadata[MetaRouteKey] = string(route)
	}
	maps.Copy(metadata, extra)

	return bus.OutboundMessage{
		Channel:  inbound.Channel,
		ChatID:   inbound.ChatID,
		Content:  content,
		Kind:     bus.MessageKindText,
		ReplyTo:  inbound.MessageID,
		Metadata: metadata,
	}
}

func (p *Processor) publish(ctx context.Context, inbound bus.InboundMessage, requestID string, eventType bus.EventType, payload map[string]string, err error) {
	if p.events == nil {
		return
	}

	event := bus.Event{
		Type:      eventType,
		Channel:   inbound.Channel,
		ChatID:    inbound.ChatID,
		MessageID: inbound.MessageID,
		RequestID: requestID,
		Payload:   payload,
	}
	if err != nil {
		event.Error = err.Error()
	}

	_ = p.events.PublishEvent(ctx, event)
}

func resultMetadata(result factcheck.Result) map[string]string {
	metadata := map[string]string{
		MetaFallbackKey: strconv.FormatBool(result.Fallback),
	}
	if result.Confidence != nil {
		metadata[MetaConfidenceKey] = strconv.FormatFloat(*result.Confidence, 'f', 2, 64)
	}
	if len(result.Sources) > 0 {
		metadata[MetaSourcesKey] = strings.Join(result.Sources, ",")
	}
	maps.Copy(metadata, providertypes.UsageMetadata(result.Usage))

	return metadata
}
