package command

import (
	"context"
	"fixfur/internal/core/domain"
	"fixfur/internal/core/port"
	"fmt"
	"strings"
)

type Help struct {
	registry   port.CommandRegistry
	textSender port.TextSender
	command    string
}

func NewHelp(registry port.CommandRegistry, sender port.TextSender, command string) *Help {
	return &Help{registry: registry, textSender: sender, command: command}
}

func (h *Help) GetCommand() string {
	return h.command
}

func (h *Help) Respond(ctx context.Context, message *domain.Message) error {
	text := fmt.Sprintf(domain.HelpText, strings.Join(h.registry.ListCommands(), ", "))

	_, err := h.textSender.SendMessageReply(ctx, message, text)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSendingReplyFailed, err)
	}

	return nil
}
