package channel

import (
	"context"

	"mythbuster/pkg/bus"

	"github.com/gorilla/mux"
)

// Handler processes one inbound channel message and returns the reply. The
// reply is populated even when an error is returned.
type Handler func(context.Context, bus.InboundMessage) (bus.OutboundMessage, error)

// Adapter bridges one long-running external transport (for example Telegram
// long polling) into the pipeline.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}

// Sender delivers a text reply to a recipient on an external platform.
type Sender interface {
	Send(ctx context.Context, to string, text string) error
}

// RouteRegistrar is implemented by webhook-driven channels that receive
// messages through the gateway HTTP server.
type RouteRegistrar interface {
	Name() string
	RegisterRoutes(router *mux.Router, handler Handler)
}

// PublishDelivery records the delivery result of a reply on the event bus.
// A nil publisher is ignored.
func PublishDelivery(ctx context.Context, events bus.Publisher, reply bus.OutboundMessage, sendErr error) {
	if events == nil {
		return
	}

	event := bus.Event{
		Type:      bus.EventReplySent,
		Channel:   reply.Channel,
		ChatID:    reply.ChatID,
		MessageID: reply.ReplyTo,
		RequestID: reply.Metadata[bus.MetadataRequestIDKey],
	}
	if sendErr != nil {
		event.Type = bus.EventReplyFailed
		event.Error = sendErr.Error()
	}

	_ = events.PublishEvent(context.WithoutCancel(ctx), event)
}
