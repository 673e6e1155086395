package bus

// MessageKindText is the only outbound message kind currently produced.
const MessageKindText = "text"

// MetadataRequestIDKey carries the pipeline request id on outbound metadata.
const MetadataRequestIDKey = "request_id"

// InboundMessage is one chat message delivered by a channel. It is built once
// per request and never mutated.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	MessageID string            `json:"message_id"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	HasMedia  bool              `json:"has_media"`
	Media     []string          `json:"media,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is the single reply produced for an inbound message.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Kind     string            `json:"kind"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
