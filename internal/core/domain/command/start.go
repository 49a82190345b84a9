package command

import (
	"context"
	"fixfur/internal/core/domain"
	"fixfur/internal/core/port"
	"fmt"
)

type Start struct {
	textSender port.TextSender
	welcome    string
	command    string
}

func NewStart(sender port.TextSender, welcome, command string) *Start {
	if welcome == "" {
		welcome = domain.WelcomeText
	}

	return &Start{textSender: sender, welcome: welcome, command: command}
}

func (s *Start) GetCommand() string {
	return s.command
}

func (s *Start) Respond(ctx context.Context, message *domain.Message) error {
	_, err := s.textSender.SendMessageReply(ctx, message, s.welcome)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSendingReplyFailed, err)
	}

	return nil
}
