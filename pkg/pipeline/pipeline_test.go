package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/classifier"
	"mythbuster/pkg/compose"
	"mythbuster/pkg/factcheck"
	providertypes "mythbuster/pkg/provider/types"

	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (s *stubCompleter) Complete(_ context.Context, _ providertypes.CompletionRequest) (providertypes.CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return providertypes.CompletionResult{}, s.err
	}

	return providertypes.CompletionResult{
		Text:  s.text,
		Usage: &providertypes.TokenUsage{InputTokens: 12, OutputTokens: 8, TotalTokens: 20},
	}, nil
}

func (s *stubCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type panickingEvaluator struct{}

func (panickingEvaluator) Evaluate(context.Context, factcheck.Request) factcheck.Result {
	panic("evaluator exploded")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recordingPublisher) PublishEvent(_ context.Context, event bus.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return true
}

func (r *recordingPublisher) Types() []bus.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]bus.EventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func newProcessor(t *testing.T, completer *stubCompleter, events bus.Publisher) *Processor {
	t.Helper()

	evaluator, err := factcheck.NewEvaluator(completer, factcheck.DefaultOptions(), nil)
	require.NoError(t, err)

	processor, err := NewProcessor(evaluator, events, nil)
	require.NoError(t, err)

	return processor
}

func inbound(body string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:   "whatsapp",
		MessageID: "SM123",
		SenderID:  "+15550001",
		ChatID:    "whatsapp:+15550001",
		Content:   body,
	}
}

func TestNewProcessorRequiresEvaluator(t *testing.T) {
	t.Parallel()

	_, err := NewProcessor(nil, nil, nil)
	require.Error(t, err)
}

func TestProcessFactCheckEndToEnd(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{text: "FALSE. Numerous CDC and WHO studies confirm no link."}
	events := &recordingPublisher{}
	processor := newProcessor(t, completer, events)

	outcome := processor.Process(context.Background(), inbound("Vaccines cause autism"))

	require.Equal(t, StatusReplied, outcome.Status)
	require.Equal(t, classifier.RouteFactCheck, outcome.Route)
	require.NoError(t, outcome.Err)
	require.Equal(t, 1, completer.Calls())

	require.NotNil(t, outcome.Result)
	require.NotNil(t, outcome.Result.Confidence)
	require.InDelta(t, 0.8, *outcome.Result.Confidence, 1e-9)
	require.Equal(t, []string{"WHO", "CDC"}, outcome.Result.Sources)

	reply := outcome.Reply
	require.Equal(t, "whatsapp", reply.Channel)
	require.Equal(t, "whatsapp:+15550001", reply.ChatID)
	require.Equal(t, bus.MessageKindText, reply.Kind)
	require.Equal(t, "SM123", reply.ReplyTo)
	require.Contains(t, reply.Content, "FALSE. Numerous CDC and WHO studies confirm no link.")
	require.Contains(t, reply.Content, "🟢 Confidence: 80%")
	require.Contains(t, reply.Content, "WHO, CDC")

	require.Equal(t, "SM123", reply.Metadata[MetaRequestIDKey])
	require.Equal(t, "fact_check", reply.Metadata[MetaRouteKey])
	require.Equal(t, "0.80", reply.Metadata[MetaConfidenceKey])
	require.Equal(t, "WHO,CDC", reply.Metadata[MetaSourcesKey])
	require.Equal(t, "20", reply.Metadata[providertypes.UsageTotalTokensKey])

	require.Equal(t, []bus.EventType{
		bus.EventMessageReceived,
		bus.EventMessageClassified,
		bus.EventFactCheckCompleted,
	}, events.Types())
}

func TestProcessGreetingSkipsCompletion(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{text: "should not be used"}
	processor := newProcessor(t, completer, nil)

	outcome := processor.Process(context.Background(), inbound("hello"))

	require.Equal(t, StatusReplied, outcome.Status)
	require.Equal(t, classifier.RouteGreeting, outcome.Route)
	require.Nil(t, outcome.Result)
	require.Equal(t, compose.Compose(classifier.RouteGreeting, nil), outcome.Reply.Content)
	require.Zero(t, completer.Calls())
}

func TestProcessConversationalRoutesSkipCompletion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body  string
		route classifier.Route
	}{
		{body: "thanks!", route: classifier.RouteThanks},
		{body: "help", route: classifier.RouteHelp},
		{body: "love you", route: classifier.RouteDefaultConversational},
		{body: "ok", route: classifier.RouteDefaultConversational},
		{body: "", route: classifier.RouteDefaultConversational},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			t.Parallel()

			completer := &stubCompleter{text: "unused"}
			outcome := newProcessor(t, completer, nil).Process(context.Background(), inbound(tt.body))

			require.Equal(t, tt.route, outcome.Route)
			require.NotEmpty(t, strings.TrimSpace(outcome.Reply.Content))
			require.Zero(t, completer.Calls())
		})
	}
}

func TestProcessMediaWinsOverClassification(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{text: "unused"}
	processor := newProcessor(t, completer, nil)

	msg := inbound("look at this")
	msg.HasMedia = true
	outcome := processor.Process(context.Background(), msg)

	require.Equal(t, StatusReplied, outcome.Status)
	require.Equal(t, RouteMedia, outcome.Route)
	require.Equal(t, compose.MediaNotice("look at this"), outcome.Reply.Content)
	require.Equal(t, "true", outcome.Reply.Metadata[MetaMediaKey])
	require.Zero(t, completer.Calls())

	msg.Content = "According to scientists the earth is flat and this proves it"
	outcome = processor.Process(context.Background(), msg)
	require.Equal(t, RouteMedia, outcome.Route)
	require.Zero(t, completer.Calls())
}

func TestProcessCompletionFailureStillReplies(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{err: errors.New("upstream 503")}
	events := &recordingPublisher{}
	processor := newProcessor(t, completer, events)

	outcome := processor.Process(context.Background(), inbound("Vaccines cause autism"))

	require.Equal(t, StatusReplied, outcome.Status)
	require.NoError(t, outcome.Err)
	require.NotNil(t, outcome.Result)
	require.True(t, outcome.Result.Fallback)
	require.Equal(t, factcheck.FallbackText, outcome.Result.Text)
	require.NotNil(t, outcome.Result.Confidence)
	require.Zero(t, *outcome.Result.Confidence)
	require.Empty(t, outcome.Result.Sources)
	require.Contains(t, outcome.Reply.Content, factcheck.FallbackText)
	require.NotContains(t, outcome.Reply.Content, "Confidence")
	require.Equal(t, "true", outcome.Reply.Metadata[MetaFallbackKey])
	require.Contains(t, events.Types(), bus.EventFactCheckFailed)
}

func TestProcessRecoversStagePanic(t *testing.T) {
	t.Parallel()

	events := &recordingPublisher{}
	processor, err := NewProcessor(panickingEvaluator{}, events, nil)
	require.NoError(t, err)

	msg := inbound("Vaccines cause autism")
	outcome := processor.Process(context.Background(), msg)

	require.Equal(t, StatusFallback, outcome.Status)
	require.Equal(t, classifier.RouteFactCheck, outcome.Route)
	require.Error(t, outcome.Err)
	require.Equal(t, compose.Apology(), outcome.Reply.Content)
	require.Equal(t, msg.ChatID, outcome.Reply.ChatID)
	require.NotEmpty(t, outcome.Reply.Error)
	require.Contains(t, events.Types(), bus.EventPipelineFailed)

	reply, handleErr := processor.Handle(context.Background(), msg)
	require.Error(t, handleErr)
	require.Equal(t, compose.Apology(), reply.Content)
}

func TestProcessGeneratesRequestIDWithoutMessageID(t *testing.T) {
	t.Parallel()

	processor := newProcessor(t, &stubCompleter{}, nil)

	msg := inbound("hello")
	msg.MessageID = ""
	first := processor.Process(context.Background(), msg)
	second := processor.Process(context.Background(), msg)

	require.NotEmpty(t, first.RequestID)
	require.NotEqual(t, first.RequestID, second.RequestID)
	require.Equal(t, first.RequestID, first.Reply.Metadata[MetaRequestIDKey])
}

func TestProcessRecordsSafetyGate(t *testing.T) {
	t.Parallel()

	processor := newProcessor(t, &stubCompleter{text: "TRUE"}, nil)

	outcome := processor.Process(context.Background(), inbound("Drinking eight glasses of water a day is required"))
	require.True(t, outcome.Safe)
	require.Equal(t, "true", outcome.Reply.Metadata[MetaSafeKey])

	outcome = processor.Process(context.Background(), inbound("This is private but the earth is flat"))
	require.False(t, outcome.Safe)
	require.Equal(t, classifier.RouteFactCheck, outcome.Route)
}

func TestProcessIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	completer := &stubCompleter{text: "FALSE. Numerous CDC and WHO studies confirm no link."}
	processor := newProcessor(t, completer, &recordingPublisher{})

	const workers = 16
	outcomes := make([]Outcome, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := "hello"
			if i%2 == 0 {
				body = "Vaccines cause autism"
			}
			outcomes[i] = processor.Process(context.Background(), inbound(body))
		}()
	}
	wg.Wait()

	for i, outcome := range outcomes {
		require.Equal(t, StatusReplied, outcome.Status)
		require.NotEmpty(t, outcome.Reply.Content)
		if i%2 == 0 {
			require.Equal(t, classifier.RouteFactCheck, outcome.Route)
		} else {
			require.Equal(t, classifier.RouteGreeting, outcome.Route)
		}
	}
	require.Equal(t, workers/2, completer.Calls())
}
