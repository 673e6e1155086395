package factcheck

import (
	"time"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/classifier"
)

// NewRequest derives a fact-check request from an inbound message.
func NewRequest(msg bus.InboundMessage, now time.Time) Request {
	return Request{
		Message:   msg.Content,
		Sender:    msg.SenderID,
		MessageID: msg.MessageID,
		CreatedAt: now,
	}
}

// IsFactCheckable is the pre-filter applied before building a request. It
// shares the routing rule set so both decisions always agree.
func IsFactCheckable(text string) bool {
	return classifier.IsFactCheckable(text)
}
