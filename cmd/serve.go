package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/channel"
	"mythbuster/pkg/channel/telegram"
	"mythbuster/pkg/channel/twilio"
	"mythbuster/pkg/config"
	"mythbuster/pkg/gateway"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook gateway",
	Long:  "Runs Myth-Buster as an HTTP gateway: the Twilio WhatsApp webhook, optional Telegram polling, and health and readiness endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, appLogger, err := loadConfigAndLogger(false)
		if err != nil {
			return err
		}
		log := appLogger.With("component", "cmd.serve")

		if err := cfg.Validate(); err != nil {
			log.Error("Configuration invalid", "error", err)
			return err
		}

		events := bus.NewBus()
		defer events.Close()

		rt, err := newRuntime(cfg, events, appLogger)
		if err != nil {
			log.Error("Failed to initialize pipeline", "error", err)
			return err
		}

		registrars, adapters, err := enabledChannels(cfg, events, appLogger)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return err
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eventLog, unsubscribe := events.SubscribeEvents(runCtx, 0)
		defer unsubscribe()
		go logEvents(appLogger.With("component", "pipeline.events"), eventLog)

		svc, err := gateway.NewService(cfg, gateway.Options{
			Provider:   rt.client,
			Handler:    rt.processor.Handle,
			Registrars: registrars,
			Adapters:   adapters,
			Events:     events,
		}, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return err
		}

		log.Info("Gateway started",
			"channels", enabledChannelNames(registrars, adapters),
			"provider", cfg.LLM.Provider,
			"model", cfg.LLM.Model,
			"port", cfg.Gateway.Port,
		)
		if cfg.Channels.WhatsApp.Enabled {
			if callback := webhookCallbackURL(cfg.Channels.WhatsApp); callback != "" {
				log.Info("WhatsApp webhook callback", "url", callback)
			} else {
				log.Warn("WEBHOOK_URL is not set; point the Twilio sandbox at this host", "path", twilio.WebhookPath)
			}
		}
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("Gateway runtime failed", "error", err)
			return err
		}

		log.Info("Gateway stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledChannels(cfg *config.Config, events bus.Publisher, log *slog.Logger) ([]channel.RouteRegistrar, []channel.Adapter, error) {
	var registrars []channel.RouteRegistrar
	var adapters []channel.Adapter

	if cfg.Channels.WhatsApp.Enabled {
		sender, err := twilio.NewSender(cfg.Channels.WhatsApp, log)
		if err != nil {
			return nil, nil, fmt.Errorf("configure %s channel: %w", twilio.ChannelName, err)
		}
		webhook, err := twilio.NewWebhook(sender, events, log)
		if err != nil {
			return nil, nil, fmt.Errorf("configure %s channel: %w", twilio.ChannelName, err)
		}
		registrars = append(registrars, webhook)
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, events, log)
		if err != nil {
			return nil, nil, fmt.Errorf("configure telegram channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if len(registrars) == 0 && len(adapters) == 0 {
		return nil, nil, errors.New("no channels are enabled")
	}

	return registrars, adapters, nil
}

// webhookCallbackURL returns the URL Twilio should post inbound messages to,
// appending the webhook path unless the configured URL already ends with it.
func webhookCallbackURL(cfg config.WhatsAppConfig) string {
	base := strings.TrimRight(strings.TrimSpace(cfg.WebhookURL), "/")
	if base == "" {
		return ""
	}
	if strings.HasSuffix(base, twilio.WebhookPath) {
		return base
	}

	return base + twilio.WebhookPath
}

func enabledChannelNames(registrars []channel.RouteRegistrar, adapters []channel.Adapter) string {
	names := make([]string, 0, len(registrars)+len(adapters))
	for _, registrar := range registrars {
		names = append(names, registrar.Name())
	}
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
