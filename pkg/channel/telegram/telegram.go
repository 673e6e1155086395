package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/channel"
	"mythbuster/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const typingRefreshInterval = 4 * time.Second

// Adapter bridges Telegram chats into the fact-check pipeline, so the bot can
// be used outside WhatsApp.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	events    bus.Publisher
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter
// instance. The publisher is optional.
func NewAdapter(cfg config.TelegramConfig, events bus.Publisher, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		events:    events,
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and forwards messages through the shared channel handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			message := update.Message
			if message == nil {
				continue
			}
			if message.From == nil {
				a.log.Debug("Ignoring message without sender")
				continue
			}

			senderID := strconv.FormatInt(message.From.ID, 10)
			if !a.senderAllowed(senderID) {
				a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
				continue
			}

			inbound, ok := inboundFromMessage(message, update.UpdateID)
			if !ok {
				continue
			}
			a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", senderID, "has_media", inbound.HasMedia, "content", inbound.Content)

			stopTyping := a.startTypingIndicator(ctx, bot, message.Chat.ID)

			outbound, err := handler(ctx, inbound)
			stopTyping()
			if err != nil {
				a.log.Error("Failed to process inbound message", "error", err)
			}

			responseText := replyText(outbound)
			if responseText == "" {
				continue
			}
			outbound.Channel = channelName
			outbound.ChatID = inbound.ChatID
			a.log.Info("Sending message", "chat_id", inbound.ChatID, "content", responseText)

			_, sendErr := bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), responseText))
			if sendErr != nil {
				a.log.Error("Failed to send telegram message", "error", sendErr)
			}
			channel.PublishDelivery(ctx, a.events, outbound, sendErr)
		}
	}
}

// inboundFromMessage maps a Telegram message to the pipeline record. Text
// messages carry their text; media messages carry the caption and the media
// flag. Messages with neither are skipped.
func inboundFromMessage(message *telego.Message, updateID int) (bus.InboundMessage, bool) {
	hasMedia := len(message.Photo) > 0 ||
		message.Video != nil ||
		message.Document != nil ||
		message.Voice != nil ||
		message.Audio != nil

	content := strings.TrimSpace(message.Text)
	if hasMedia {
		content = strings.TrimSpace(message.Caption)
	}
	if content == "" && !hasMedia {
		return bus.InboundMessage{}, false
	}

	chatID := strconv.FormatInt(message.Chat.ID, 10)
	senderID := ""
	if message.From != nil {
		senderID = strconv.FormatInt(message.From.ID, 10)
	}

	return bus.InboundMessage{
		Channel:   channelName,
		MessageID: strconv.Itoa(message.MessageID),
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		HasMedia:  hasMedia,
		Metadata: map[string]string{
			"update_id": strconv.Itoa(updateID),
		},
	}, true
}

// replyText picks the reply content, falling back to the error text.
func replyText(outbound bus.OutboundMessage) string {
	if text := strings.TrimSpace(outbound.Content); text != "" {
		return text
	}

	return strings.TrimSpace(outbound.Error)
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// startTypingIndicator sends an initial typing action and refreshes it periodically
// until the returned cancel function is called.
func (a *Adapter) startTypingIndicator(ctx context.Context, bot *telego.Bot, chatID int64) context.CancelFunc {
	typingCtx, cancel := context.WithCancel(ctx)

	sendTyping := func() {
		if err := bot.SendChatAction(typingCtx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping)); err != nil && typingCtx.Err() == nil {
			a.log.Debug("Failed to send typing indicator", "chat_id", chatID, "error", err)
		}
	}

	sendTyping()

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				sendTyping()
			}
		}
	}()

	return cancel
}
