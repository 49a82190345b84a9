package service

import (
	"context"
	"errors"
	"fixfur/internal/core/domain"
	"fixfur/internal/core/domain/command"
	"fixfur/internal/core/port"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMediaTimeout    = 60 * time.Second
	DefaultUpstreamTimeout = 90 * time.Second
)

const defaultImageMimeType = "image/jpeg"

var errEmptyTranscript = errors.New("transcription is empty")

type DispatcherParams struct {
	Registry        port.CommandRegistry
	Builder         *Builder
	Completer       port.Completer
	Transcriber     port.Transcriber
	Fetcher         port.FileFetcher
	Sender          port.TextSender
	Pool            *Pool
	ChunkSize       int
	MediaTimeout    time.Duration
	UpstreamTimeout time.Duration
}

// Dispatcher runs turns: classify, build, call upstream, chunk and emit. Turns share
// only read-only collaborators, so any number of them may run at once.
type Dispatcher struct {
	registry        port.CommandRegistry
	builder         *Builder
	completer       port.Completer
	transcriber     port.Transcriber
	fetcher         port.FileFetcher
	sender          port.TextSender
	pool            *Pool
	chunkSize       int
	mediaTimeout    time.Duration
	upstreamTimeout time.Duration
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	d := &Dispatcher{
		registry:        p.Registry,
		builder:         p.Builder,
		completer:       p.Completer,
		transcriber:     p.Transcriber,
		fetcher:         p.Fetcher,
		sender:          p.Sender,
		pool:            p.Pool,
		chunkSize:       p.ChunkSize,
		mediaTimeout:    p.MediaTimeout,
		upstreamTimeout: p.UpstreamTimeout,
	}

	if d.registry == nil {
		d.registry = &command.Registry{}
	}
	if d.builder == nil {
		d.builder = NewBuilder(BuilderParams{})
	}
	if d.pool == nil {
		d.pool = NewPool(DefaultWorkers)
	}
	if d.chunkSize <= 0 {
		d.chunkSize = domain.TelegramMessageLimit
	}
	if d.mediaTimeout <= 0 {
		d.mediaTimeout = DefaultMediaTimeout
	}
	if d.upstreamTimeout <= 0 {
		d.upstreamTimeout = DefaultUpstreamTimeout
	}

	return d
}

// Dispatch processes one message through to exactly one reply. Recoverable failures are
// turned into an apology reply; the returned error only reports that emitting failed.
func (d *Dispatcher) Dispatch(ctx context.Context, message *domain.Message) (err error) {
	category := domain.Classify(message)
	l := d.turnLogger(message, category)

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("recovered panic in turn")
			err = d.fail(ctx, &l, category, message,
				domain.NewTurnError(domain.UpstreamCallFailed, fmt.Errorf("internal error: %v", r)))
		}
	}()

	l.Debug().Str("state", "classified").Msg("handling message")

	switch category {
	case domain.CategoryCommand:
		return d.runCommand(ctx, &l, message)
	case domain.CategoryUnsupported:
		return d.fail(ctx, &l, category, message,
			domain.NewTurnError(domain.ClassificationUnsupported, errors.New("unsupported message")))
	case domain.CategoryText, domain.CategoryMedia, domain.CategoryVoice:
	}

	typingCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	go d.sender.SendChatAction(typingCtx, message.ChatID, domain.Typing)

	var reply string
	switch category {
	case domain.CategoryText:
		reply, err = d.answerText(ctx, &l, message)
	case domain.CategoryMedia:
		reply, err = d.answerMedia(ctx, &l, message)
	case domain.CategoryVoice:
		reply, err = d.answerVoice(ctx, &l, message)
	}
	stopTyping()

	if err != nil {
		return d.fail(ctx, &l, category, message, err)
	}

	l.Debug().Str("state", "reply-ready").Int("length", utf8.RuneCountInString(reply)).Send()

	return d.emit(ctx, &l, message, reply)
}

func (d *Dispatcher) turnLogger(message *domain.Message, category domain.Category) zerolog.Logger {
	turnID, err := uuid.NewV4()
	if err != nil {
		log.Warn().Err(err).Msg("failed to generate turn id")
	}

	c := log.With().
		Str("turnId", turnID.String()).
		Str("category", category.String())
	if message != nil {
		c = c.Int("messageId", message.ID).Int64("chatId", message.ChatID).Str("user", message.Username)
	}

	return c.Logger()
}

func (d *Dispatcher) runCommand(ctx context.Context, l *zerolog.Logger, message *domain.Message) error {
	name := command.ParseCommand(message.Text)

	handler, err := d.registry.Get(name)
	if err != nil {
		l.Debug().Err(err).Str("command", name).Msg("no handler for command")
		return d.emit(ctx, l, message,
			fmt.Sprintf(domain.UnknownCommandText, strings.Join(d.registry.ListCommands(), ", ")))
	}

	if err := handler.Respond(ctx, message); err != nil {
		return fmt.Errorf("command %s: %w", name, err)
	}

	l.Debug().Str("state", "emitted").Str("command", name).Send()
	return nil
}

func (d *Dispatcher) answerText(ctx context.Context, l *zerolog.Logger, message *domain.Message) (string, error) {
	request, err := d.builder.Build(domain.CategoryText, Content{Text: message.Text})
	if err != nil {
		return "", err
	}
	l.Debug().Str("state", "built").Send()

	return d.complete(ctx, l, request)
}

func (d *Dispatcher) answerMedia(ctx context.Context, l *zerolog.Logger, message *domain.Message) (string, error) {
	content := Content{Text: message.Caption}

	if domain.IsImage(message.Media) {
		data, err := d.fetch(ctx, message.Media)
		if err != nil {
			return "", err
		}

		mimeType := message.Media.MimeType
		if mimeType == "" {
			mimeType = defaultImageMimeType
		}
		content.Image = &domain.InlineImage{MimeType: mimeType, Data: data}
	}

	request, err := d.builder.Build(domain.CategoryMedia, content)
	if err != nil {
		return "", err
	}
	l.Debug().Str("state", "built").Bool("image", request.Image != nil).Send()

	return d.complete(ctx, l, request)
}

func (d *Dispatcher) answerVoice(ctx context.Context, l *zerolog.Logger, message *domain.Message) (string, error) {
	audio, err := d.fetch(ctx, message.Media)
	if err != nil {
		return "", err
	}

	l.Debug().Str("state", "upstream-pending").Str("stage", "transcription").Send()
	transcript, err := Offload(ctx, d.pool, d.upstreamTimeout, func(ctx context.Context) (string, error) {
		return d.transcriber.Transcribe(ctx, audio, domain.AudioFileName(message.Media))
	})
	if err != nil {
		return "", asTurnError(domain.TranscriptionFailed, err)
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", domain.NewTurnError(domain.TranscriptionFailed, errEmptyTranscript)
	}

	request, err := d.builder.Build(domain.CategoryVoice, Content{Text: transcript})
	if err != nil {
		return "", err
	}
	l.Debug().Str("state", "built").Send()

	answer, err := d.complete(ctx, l, request)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(domain.TranscriptReplyText, transcript, answer), nil
}

func (d *Dispatcher) fetch(ctx context.Context, media *domain.Attachment) ([]byte, error) {
	data, err := Offload(ctx, d.pool, d.mediaTimeout, func(ctx context.Context) ([]byte, error) {
		return d.fetcher.FetchFile(ctx, media.FileID)
	})
	if err != nil {
		return nil, asTurnError(domain.MediaFetchFailed, err)
	}

	return data, nil
}

func (d *Dispatcher) complete(ctx context.Context, l *zerolog.Logger, request domain.Request) (string, error) {
	l.Debug().Str("state", "upstream-pending").Str("stage", "completion").Send()

	response, err := Offload(ctx, d.pool, d.upstreamTimeout, func(ctx context.Context) (domain.ModelResponse, error) {
		return d.completer.Complete(ctx, request)
	})
	if err != nil {
		return "", asTurnError(domain.UpstreamCallFailed, err)
	}

	reply := strings.TrimSpace(response.Response)
	if reply == "" {
		return "", domain.NewTurnError(domain.UpstreamCallFailed, domain.ErrEmptyReply)
	}

	l.Debug().
		Str("model", response.Metadata.Model).
		Int("completionTokens", response.Metadata.CompletionTokens).
		Int("totalTokens", response.Metadata.TotalTokens).
		Msg("reply generated")

	return reply, nil
}

// fail reports a failed turn to the user with a single apology message.
func (d *Dispatcher) fail(ctx context.Context, l *zerolog.Logger, category domain.Category,
	message *domain.Message, err error) error {
	kind := domain.KindOf(err)
	l.Error().Err(err).Str("state", "failed").Stringer("kind", kind).Msg("turn failed")

	return d.emit(ctx, l, message, apology(category, kind, err))
}

func (d *Dispatcher) emit(ctx context.Context, l *zerolog.Logger, message *domain.Message, text string) error {
	if message == nil {
		return errors.New("no message to reply to")
	}

	segments := domain.Chunk(text, d.chunkSize)
	for i, segment := range segments {
		if _, err := d.sender.SendMessageReply(ctx, message, segment); err != nil {
			l.Error().Err(err).Int("segment", i).Int("segments", len(segments)).Msg(domain.ErrSendingReplyFailed.Error())
			return fmt.Errorf("%w: %w", domain.ErrSendingReplyFailed, err)
		}
	}

	l.Debug().Str("state", "emitted").Int("segments", len(segments)).Send()
	return nil
}

func apology(category domain.Category, kind domain.ErrorKind, err error) string {
	detail := err.Error()
	var te *domain.TurnError
	if errors.As(err, &te) && te.Err != nil {
		detail = te.Err.Error()
	}

	switch kind {
	case domain.ClassificationUnsupported:
		return domain.UnsupportedText
	case domain.MediaFetchFailed:
		if category == domain.CategoryVoice {
			return fmt.Sprintf(domain.TranscriptionFailedText, detail)
		}
		return fmt.Sprintf(domain.MediaFetchFailedText, detail)
	case domain.TranscriptionFailed:
		return fmt.Sprintf(domain.TranscriptionFailedText, detail)
	case domain.UpstreamCallFailed, domain.ConfigMissing:
	}

	switch category {
	case domain.CategoryMedia:
		return fmt.Sprintf(domain.MediaFailedText, detail)
	case domain.CategoryVoice:
		return fmt.Sprintf(domain.TranscriptionFailedText, detail)
	default:
		return fmt.Sprintf(domain.UpstreamFailedText, detail)
	}
}

func asTurnError(kind domain.ErrorKind, err error) error {
	var te *domain.TurnError
	if errors.As(err, &te) {
		return err
	}

	return domain.NewTurnError(kind, err)
}
