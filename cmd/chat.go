package cmd

import (
	"mythbuster/pkg/ui/chat"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot in a terminal simulator",
	Long:  "Opens a full-screen chat that sends each line through the same pipeline as WhatsApp. Prefix a line with /media to simulate an attachment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, appLogger, err := loadConfigAndLogger(true)
		if err != nil {
			return err
		}

		rt, err := newLocalRuntime(cfg, appLogger)
		if err != nil {
			return err
		}
		providerHealth(cmd.Context(), rt.client, appLogger.With("component", "cmd.chat"))

		return chat.RunInteractive(cmd.Context(), rt.processor.Handle, chat.RuntimeInfo{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
