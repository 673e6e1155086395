package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mythbuster/pkg/config"

	twiliosdk "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MaxBodyLength is Twilio's limit for one WhatsApp message body.
const MaxBodyLength = 1600

// messageCreator is the slice of the Twilio REST API the sender uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Sender delivers replies through the Twilio Messages API.
type Sender struct {
	api  messageCreator
	from string
	log  *slog.Logger
}

// NewSender builds a sender from account credentials.
func NewSender(cfg config.WhatsAppConfig, log *slog.Logger) (*Sender, error) {
	accountSID := strings.TrimSpace(cfg.AccountSID)
	authToken := strings.TrimSpace(cfg.AuthToken)
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}

	client := twiliosdk.NewRestClientWithParams(twiliosdk.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return newSender(client.Api, cfg.PhoneNumber, log)
}

func newSender(api messageCreator, from string, log *slog.Logger) (*Sender, error) {
	if api == nil {
		return nil, errors.New("twilio api client is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("twilio phone number is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Sender{
		api:  api,
		from: WithPrefix(from),
		log:  log.With("component", "channel.twilio.sender"),
	}, nil
}

// Send delivers text to a WhatsApp recipient. The Twilio SDK call is not
// context-aware, so ctx is only checked before the request is issued.
func (s *Sender) Send(ctx context.Context, to string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipient := WithPrefix(to)
	if recipient == "" {
		return errors.New("recipient is required")
	}

	body := truncateBody(text)
	if strings.TrimSpace(body) == "" {
		return errors.New("message body is empty")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(s.from)
	params.SetBody(body)

	message, err := s.api.CreateMessage(params)
	if err != nil {
		s.log.Error("Failed to send WhatsApp message", "to", recipient, "error", err)
		return fmt.Errorf("send whatsapp message: %w", err)
	}

	sid := ""
	if message != nil && message.Sid != nil {
		sid = *message.Sid
	}
	s.log.Info("Sent WhatsApp message", "to", recipient, "message_sid", sid, "content", body)

	return nil
}

func truncateBody(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxBodyLength {
		return text
	}

	return string(runes[:MaxBodyLength-1]) + "…"
}
