package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/pipeline"
	"mythbuster/pkg/ui/chat"

	"github.com/spf13/cobra"
)

var (
	checkMessage string
	checkMedia   bool
	checkPretty  bool
)

var checkCmd = &cobra.Command{
	Use:   "check [message]",
	Short: "Run one message through the bot and print the reply",
	Long:  "Classifies one message, fact-checks it when it carries a claim, and prints the reply the bot would send. No messaging platform is contacted, and the LLM provider is only contacted for fact-checks, so greetings and help work without an API key.",
	RunE: func(cmd *cobra.Command, args []string) error {
		message := resolveMessage(args)
		if message == "" && !checkMedia {
			return errors.New("a message is required")
		}

		cfg, appLogger, err := loadConfigAndLogger(checkPretty)
		if err != nil {
			return err
		}

		rt, err := newLocalRuntime(cfg, appLogger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if checkPretty {
			return chat.RunOneShot(ctx, rt.processor.Handle, chat.Message{Text: message, HasMedia: checkMedia}, chat.RuntimeInfo{
				Provider: cfg.LLM.Provider,
				Model:    cfg.LLM.Model,
			})
		}

		outcome := runCheck(ctx, rt.processor, message, checkMedia)
		printReply(cmd.OutOrStdout(), outcome)
		return outcome.Err
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkMessage, "message", "m", "", "message text to check")
	checkCmd.Flags().BoolVar(&checkMedia, "media", false, "treat the message as carrying an attachment")
	checkCmd.Flags().BoolVar(&checkPretty, "pretty", false, "render the exchange with the terminal UI")
}

func resolveMessage(args []string) string {
	if value := strings.TrimSpace(checkMessage); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func runCheck(ctx context.Context, processor *pipeline.Processor, message string, hasMedia bool) pipeline.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	return processor.Process(ctx, bus.InboundMessage{
		Channel:  chat.ChannelName,
		SenderID: "cli",
		ChatID:   "cli",
		Content:  message,
		HasMedia: hasMedia,
	})
}

func printReply(w io.Writer, outcome pipeline.Outcome) {
	fmt.Fprintln(w, strings.TrimSpace(outcome.Reply.Content))
	fmt.Fprintf(w, "\nroute: %s · status: %s", outcome.Route, outcome.Status)
	if outcome.Result != nil && outcome.Result.Usage != nil {
		fmt.Fprintf(w, " · tokens: %d", outcome.Result.Usage.TotalTokens)
	}
	fmt.Fprintln(w)
}
