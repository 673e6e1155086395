package logger

import (
	"log/slog"
	"strings"
)

// PreviewLimit bounds message text written to logs.
const PreviewLimit = 240

// Preview returns a bounded log-safe preview of message text.
func Preview(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= PreviewLimit {
		return trimmed
	}

	return string(runes[:PreviewLimit]) + "..."
}

// MaskNumber hides the middle of a phone number or chat identifier, keeping
// any channel prefix such as "whatsapp:" plus the first and last few digits.
func MaskNumber(value string) string {
	value = strings.TrimSpace(value)
	prefix := ""
	if idx := strings.LastIndex(value, ":"); idx >= 0 {
		prefix, value = value[:idx+1], value[idx+1:]
	}

	runes := []rune(value)
	if len(runes) <= 6 {
		return prefix + value
	}

	return prefix + string(runes[:3]) + strings.Repeat("*", len(runes)-6) + string(runes[len(runes)-3:])
}

// Redacted replaces credential values in log output.
const Redacted = "[redacted]"

var (
	numberKeys = keySet("sender", "sender_id", "from", "to", "chat_id", "recipient")
	bodyKeys   = keySet("content", "body", "text", "prompt")
	secretKeys = keySet("auth_token", "api_key", "token", "password", "authorization")
)

func keySet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// Redact rewrites one log attribute by key: identifiers are masked with
// MaskNumber, message bodies are cut to Preview and credentials are replaced
// with Redacted. Groups are rewritten recursively; other attributes pass
// through unchanged.
func Redact(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		redacted := make([]slog.Attr, len(group))
		for i, item := range group {
			redacted[i] = Redact(item)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redacted...)}
	}

	key := strings.ToLower(attr.Key)
	if _, ok := secretKeys[key]; ok {
		if attr.Value.Kind() == slog.KindString && attr.Value.String() == "" {
			return attr
		}
		return slog.String(attr.Key, Redacted)
	}
	if _, ok := numberKeys[key]; ok {
		switch attr.Value.Kind() {
		case slog.KindString, slog.KindInt64, slog.KindUint64:
			return slog.String(attr.Key, MaskNumber(attr.Value.String()))
		}
		return attr
	}
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	if _, ok := bodyKeys[key]; ok {
		return slog.String(attr.Key, Preview(attr.Value.String()))
	}

	return attr
}
