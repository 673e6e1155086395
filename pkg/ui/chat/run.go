package chat

import (
	"context"
	"errors"
	"fmt"

	"mythbuster/pkg/bus"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// ChannelName tags messages sent from the terminal simulator.
	ChannelName = "terminal"
	localSender = "local"
)

// ReplyFunc runs one inbound message through the bot.
type ReplyFunc func(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error)

// Message is what the user types, optionally flagged as carrying media.
type Message struct {
	Text     string
	HasMedia bool
}

// RuntimeInfo is shown in the simulator header.
type RuntimeInfo struct {
	Provider string
	Model    string
}

// RunInteractive starts the full-screen simulator.
func RunInteractive(ctx context.Context, reply ReplyFunc, info RuntimeInfo) error {
	if reply == nil {
		return errors.New("reply function is required")
	}

	program := tea.NewProgram(newModel(ctx, reply, modeInteractive, Message{}, info), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

// RunOneShot renders a single exchange inline and exits.
func RunOneShot(ctx context.Context, reply ReplyFunc, message Message, info RuntimeInfo) error {
	if reply == nil {
		return errors.New("reply function is required")
	}

	program := tea.NewProgram(newModel(ctx, reply, modeOneShot, message, info))
	_, err := program.Run()
	return err
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("28")).
		Padding(1, 2)

	return style.Render("🔍 Stay curious, check your sources.")
}
