package sender

import (
	"context"
	"fixfur/internal/core/domain"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

type TelegramBot interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
}

type Telegram struct {
	bot TelegramBot
}

func NewTelegram(bot TelegramBot) *Telegram {
	return &Telegram{bot: bot}
}

// SendMessageReply sends text as a single plain-text reply. Callers chunk long replies beforehand.
func (s *Telegram) SendMessageReply(ctx context.Context, message *domain.Message, text string) (int, error) {
	params := &bot.SendMessageParams{
		ChatID: message.ChatID,
		Text:   text,
	}

	if message.ID != 0 {
		params.ReplyParameters = &models.ReplyParameters{
			MessageID:                message.ID,
			ChatID:                   message.ChatID,
			AllowSendingWithoutReply: true,
		}
	}

	sent, err := s.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, err
	}

	if sent == nil {
		return 0, nil
	}

	return sent.ID, nil
}

const ChatActionRepeatSeconds = 5

func (s *Telegram) SendChatAction(ctx context.Context, chatID int64, action domain.Action) {
	log.Trace().Int64("chatID", chatID).Msg("starting action routine")

	ticker := time.NewTicker(ChatActionRepeatSeconds * time.Second)
	defer ticker.Stop()

	for {
		log.Trace().Int64("chatID", chatID).Msg("transmitting action")
		_, err := s.bot.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatAction(action),
		})
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Int64("chatID", chatID).Msg("error sending chat action")
			}
			return
		}

		select {
		case <-ctx.Done():
			log.Trace().Int64("chatID", chatID).Msg("done, stopping action routine")
			return
		case <-ticker.C:
		}
	}
}
