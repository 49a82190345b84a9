package handler

import (
	"context"
	"fixfur/internal/core/domain"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, message *domain.Message) error
}

// Update receives updates from the bot's polling loop and runs each one as an independent
// turn in its own goroutine, so slow turns never hold up delivery.
type Update struct {
	dispatcher Dispatcher
	timeout    time.Duration
	wg         sync.WaitGroup
}

func NewUpdate(dispatcher Dispatcher, timeout time.Duration) *Update {
	return &Update{dispatcher: dispatcher, timeout: timeout}
}

func (u *Update) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	message := toMessage(update)
	if message == nil {
		log.Trace().Msg("ignoring update without message")
		return
	}

	log.Debug().Int("messageId", message.ID).Int64("chatId", message.ChatID).Msg("received message")

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()

		// turns are not cancelled on shutdown, only bounded by the handler timeout
		turnCtx := context.WithoutCancel(ctx)
		if u.timeout > 0 {
			var cancel context.CancelFunc
			turnCtx, cancel = context.WithTimeout(turnCtx, u.timeout)
			defer cancel()
		}

		if err := u.dispatcher.Dispatch(turnCtx, message); err != nil {
			log.Err(err).Int("messageId", message.ID).Int64("chatId", message.ChatID).
				Msg("failed to respond to message")
		}
	}()
}

// Wait blocks until every turn started by Handle has finished.
func (u *Update) Wait() {
	u.wg.Wait()
}

func toMessage(update *models.Update) *domain.Message {
	if update == nil || update.Message == nil {
		return nil
	}

	msg := update.Message

	return &domain.Message{
		ID:       msg.ID,
		ChatID:   msg.Chat.ID,
		Username: getUserNameFromMessage(msg.From),
		Text:     msg.Text,
		Caption:  msg.Caption,
		Media:    getAttachment(msg),
	}
}

func getAttachment(msg *models.Message) *domain.Attachment {
	switch {
	case msg.Voice != nil:
		return &domain.Attachment{Kind: domain.Voice, FileID: msg.Voice.FileID, MimeType: msg.Voice.MimeType}
	case msg.Audio != nil:
		return &domain.Attachment{Kind: domain.Audio, FileID: msg.Audio.FileID,
			FileName: msg.Audio.FileName, MimeType: msg.Audio.MimeType}
	case msg.Document != nil:
		return &domain.Attachment{Kind: domain.Document, FileID: msg.Document.FileID,
			FileName: msg.Document.FileName, MimeType: msg.Document.MimeType}
	case len(msg.Photo) > 0:
		return &domain.Attachment{Kind: domain.Photo, FileID: findMediumSizedImage(msg.Photo), MimeType: "image/jpeg"}
	case msg.Video != nil:
		return &domain.Attachment{Kind: domain.Video, FileID: msg.Video.FileID,
			FileName: msg.Video.FileName, MimeType: msg.Video.MimeType}
	case msg.VideoNote != nil:
		return &domain.Attachment{Kind: domain.Video, FileID: msg.VideoNote.FileID, MimeType: "video/mp4"}
	case msg.Sticker != nil, msg.Location != nil, msg.Contact != nil, msg.Poll != nil:
		return &domain.Attachment{Kind: domain.Other}
	default:
		return nil
	}
}

const minSize = 80000
const maxSize = 130000

func findMediumSizedImage(photos []models.PhotoSize) string {
	for _, photo := range photos {
		if photo.FileSize > minSize && photo.FileSize < maxSize {
			return photo.FileID
		}
	}

	return photos[len(photos)-1].FileID
}

func getUserNameFromMessage(user *models.User) string {
	if user == nil {
		return ""
	}

	if user.Username == "" {
		return user.FirstName
	}

	return "@" + user.Username
}
