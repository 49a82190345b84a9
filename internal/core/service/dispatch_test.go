package service

import (
	"bytes"
	"context"
	"errors"
	"fixfur/internal/core/domain"
	"fixfur/internal/core/domain/command"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu      sync.Mutex
	replies map[int64][]string
	failAt  int
	sent    int
}

func newFakeSender() *fakeSender {
	return &fakeSender{replies: make(map[int64][]string), failAt: -1}
}

func (s *fakeSender) SendMessageReply(_ context.Context, message *domain.Message, text string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAt >= 0 && s.sent == s.failAt {
		return 0, errors.New("telegram unavailable")
	}
	s.sent++
	s.replies[message.ChatID] = append(s.replies[message.ChatID], text)

	return s.sent, nil
}

func (s *fakeSender) SendChatAction(ctx context.Context, _ int64, _ domain.Action) {
	<-ctx.Done()
}

func (s *fakeSender) repliesFor(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.replies[chatID]...)
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []domain.Request
	complete func(ctx context.Context, request domain.Request) (domain.ModelResponse, error)
}

func (c *fakeCompleter) Complete(ctx context.Context, request domain.Request) (domain.ModelResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, request)
	c.mu.Unlock()

	return c.complete(ctx, request)
}

func (c *fakeCompleter) calls() []domain.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]domain.Request(nil), c.requests...)
}

func replying(text string) *fakeCompleter {
	return &fakeCompleter{complete: func(_ context.Context, _ domain.Request) (domain.ModelResponse, error) {
		return domain.ModelResponse{Response: text}, nil
	}}
}

type fakeTranscriber struct {
	text     string
	err      error
	got      []byte
	fileName string
}

func (t *fakeTranscriber) Transcribe(_ context.Context, audio []byte, fileName string) (string, error) {
	t.got = audio
	t.fileName = fileName
	return t.text, t.err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *syncBuffer {
	t.Helper()

	out := &syncBuffer{}
	previous := log.Logger
	log.Logger = zerolog.New(out)
	t.Cleanup(func() { log.Logger = previous })

	return out
}

type fakeFetcher struct {
	data  []byte
	err   error
	delay time.Duration
	calls int
}

func (f *fakeFetcher) FetchFile(ctx context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return f.data, f.err
}

type deps struct {
	sender      *fakeSender
	completer   *fakeCompleter
	transcriber *fakeTranscriber
	fetcher     *fakeFetcher
	params      DispatcherParams
}

func newDispatcher(d *deps) *Dispatcher {
	if d.sender == nil {
		d.sender = newFakeSender()
	}
	if d.completer == nil {
		d.completer = replying("ok")
	}
	if d.transcriber == nil {
		d.transcriber = &fakeTranscriber{}
	}
	if d.fetcher == nil {
		d.fetcher = &fakeFetcher{}
	}

	p := d.params
	p.Sender = d.sender
	p.Completer = d.completer
	p.Transcriber = d.transcriber
	p.Fetcher = d.fetcher

	return NewDispatcher(p)
}

func TestDispatch_TextReply(t *testing.T) {
	d := &deps{completer: replying("Аккуратно расчешите щёткой.")}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10, Text: "Как почистить мех?"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Аккуратно расчешите щёткой."}, d.sender.repliesFor(10))

	calls := d.completer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Как почистить мех?", calls[0].Text)
	assert.Equal(t, domain.DefaultSystemPrompt, calls[0].SystemInstruction)
	assert.Equal(t, DefaultTextMaxTokens, calls[0].MaxTokens)
	assert.Nil(t, calls[0].Image)
}

func TestDispatch_LongReplyIsChunkedInOrder(t *testing.T) {
	long := strings.Repeat("a", 3500) + strings.Repeat("b", 3500) + strings.Repeat("c", 2000)
	d := &deps{completer: replying(long), params: DispatcherParams{ChunkSize: 3500}}
	dispatcher := newDispatcher(d)

	require.NoError(t, dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10, Text: "расскажи подробно"}))

	replies := d.sender.repliesFor(10)
	require.Len(t, replies, 3)
	assert.Len(t, replies[0], 3500)
	assert.Len(t, replies[1], 3500)
	assert.Len(t, replies[2], 2000)
	assert.Equal(t, strings.Repeat("a", 3500), replies[0])
	assert.Equal(t, strings.Repeat("c", 2000), replies[2])
	assert.Equal(t, long, strings.Join(replies, ""))
}

func TestDispatch_VoiceReplyContainsTranscriptFirst(t *testing.T) {
	d := &deps{
		completer:   replying("От 5000 рублей."),
		transcriber: &fakeTranscriber{text: "Сколько стоит реставрация шубы?"},
		fetcher:     &fakeFetcher{data: []byte("ogg")},
	}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10,
		Media: &domain.Attachment{Kind: domain.Voice, FileID: "v", MimeType: "audio/ogg"}})
	require.NoError(t, err)

	replies := d.sender.repliesFor(10)
	require.Len(t, replies, 1)
	transcriptAt := strings.Index(replies[0], "Сколько стоит реставрация шубы?")
	answerAt := strings.Index(replies[0], "От 5000 рублей.")
	require.GreaterOrEqual(t, transcriptAt, 0)
	require.GreaterOrEqual(t, answerAt, 0)
	assert.Less(t, transcriptAt, answerAt)
	assert.True(t, strings.HasPrefix(replies[0], "Расшифровка:"))

	assert.Equal(t, []byte("ogg"), d.transcriber.got)
	assert.Equal(t, "voice.ogg", d.transcriber.fileName)
	calls := d.completer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Сколько стоит реставрация шубы?", calls[0].Text)
}

func TestDispatch_UnnamedAudioKeepsItsFormat(t *testing.T) {
	d := &deps{
		transcriber: &fakeTranscriber{text: "вопрос"},
		fetcher:     &fakeFetcher{data: []byte("mp3")},
	}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10,
		Media: &domain.Attachment{Kind: domain.Audio, FileID: "a", MimeType: "audio/mpeg"}})
	require.NoError(t, err)

	assert.Equal(t, "voice.mp3", d.transcriber.fileName)
}

func TestDispatch_AudioDocumentIsTranscribed(t *testing.T) {
	d := &deps{
		transcriber: &fakeTranscriber{text: "вопрос"},
		fetcher:     &fakeFetcher{data: []byte("ogg")},
	}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10,
		Media: &domain.Attachment{Kind: domain.Document, FileID: "d", FileName: "note.oga", MimeType: "audio/ogg"}})
	require.NoError(t, err)

	assert.Equal(t, []byte("ogg"), d.transcriber.got)
	assert.Equal(t, "note.oga", d.transcriber.fileName)
	require.Len(t, d.completer.calls(), 1)
	assert.Nil(t, d.completer.calls()[0].Image)
}

func TestDispatch_MediaFetchTimeoutSkipsCompletion(t *testing.T) {
	d := &deps{
		fetcher: &fakeFetcher{data: []byte("jpeg"), delay: time.Second},
		params:  DispatcherParams{MediaTimeout: 20 * time.Millisecond},
	}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10,
		Media: &domain.Attachment{Kind: domain.Photo, FileID: "p"}})
	require.NoError(t, err)

	replies := d.sender.repliesFor(10)
	require.Len(t, replies, 1)
	assert.True(t, strings.HasPrefix(replies[0], "Не удалось загрузить файл:"))
	assert.Empty(t, d.completer.calls())
}

func TestDispatch_PhotoIsInlined(t *testing.T) {
	d := &deps{fetcher: &fakeFetcher{data: []byte("jpeg")}}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10, Caption: "что с воротником?",
		Media: &domain.Attachment{Kind: domain.Photo, FileID: "p", MimeType: "image/jpeg"}})
	require.NoError(t, err)

	calls := d.completer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "что с воротником?", calls[0].Text)
	assert.Equal(t, DefaultMediaMaxTokens, calls[0].MaxTokens)
	require.NotNil(t, calls[0].Image)
	assert.Equal(t, &domain.InlineImage{MimeType: "image/jpeg", Data: []byte("jpeg")}, calls[0].Image)
}

func TestDispatch_VideoUsesCaptionOnly(t *testing.T) {
	d := &deps{}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10,
		Media: &domain.Attachment{Kind: domain.Video, FileID: "v", MimeType: "video/mp4"}})
	require.NoError(t, err)

	assert.Zero(t, d.fetcher.calls)
	calls := d.completer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.DefaultMediaPrompt, calls[0].Text)
	assert.Nil(t, calls[0].Image)
}

func TestDispatch_UpstreamFailureIsIsolated(t *testing.T) {
	fail := true
	completer := &fakeCompleter{complete: func(_ context.Context, _ domain.Request) (domain.ModelResponse, error) {
		if fail {
			return domain.ModelResponse{}, domain.NewTurnError(domain.UpstreamCallFailed, errors.New("quota exceeded"))
		}
		return domain.ModelResponse{Response: "всё хорошо"}, nil
	}}
	d := &deps{completer: completer}
	dispatcher := newDispatcher(d)

	require.NoError(t, dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10, Text: "вопрос"}))

	replies := d.sender.repliesFor(10)
	require.Len(t, replies, 1)
	assert.Equal(t, "Извините, временная ошибка: quota exceeded", replies[0])

	fail = false
	require.NoError(t, dispatcher.Dispatch(t.Context(), &domain.Message{ID: 2, ChatID: 10, Text: "ещё вопрос"}))

	replies = d.sender.repliesFor(10)
	require.Len(t, replies, 2)
	assert.Equal(t, "всё хорошо", replies[1])
}

func TestDispatch_FailureReplies(t *testing.T) {
	upstreamErr := &fakeCompleter{complete: func(_ context.Context, _ domain.Request) (domain.ModelResponse, error) {
		return domain.ModelResponse{}, errors.New("connection reset")
	}}

	tests := []struct {
		name       string
		deps       *deps
		message    *domain.Message
		wantPrefix string
	}{
		{
			name:       "empty completion",
			deps:       &deps{completer: replying("  ")},
			message:    &domain.Message{ID: 1, ChatID: 10, Text: "вопрос"},
			wantPrefix: "Извините, временная ошибка: " + domain.ErrEmptyReply.Error(),
		},
		{
			name:       "media completion fails",
			deps:       &deps{completer: upstreamErr},
			message:    &domain.Message{ID: 1, ChatID: 10, Media: &domain.Attachment{Kind: domain.Video}},
			wantPrefix: "Получил файл. Пока не удалось обработать: connection reset",
		},
		{
			name: "transcription fails",
			deps: &deps{
				transcriber: &fakeTranscriber{err: errors.New("bad audio")},
				fetcher:     &fakeFetcher{data: []byte("ogg")},
			},
			message:    &domain.Message{ID: 1, ChatID: 10, Media: &domain.Attachment{Kind: domain.Voice}},
			wantPrefix: "Не удалось обработать голосовое: bad audio",
		},
		{
			name: "empty transcription",
			deps: &deps{
				transcriber: &fakeTranscriber{text: " "},
				fetcher:     &fakeFetcher{data: []byte("ogg")},
			},
			message:    &domain.Message{ID: 1, ChatID: 10, Media: &domain.Attachment{Kind: domain.Voice}},
			wantPrefix: "Не удалось обработать голосовое:",
		},
		{
			name:       "voice fetch fails",
			deps:       &deps{fetcher: &fakeFetcher{err: errors.New("404")}},
			message:    &domain.Message{ID: 1, ChatID: 10, Media: &domain.Attachment{Kind: domain.Voice}},
			wantPrefix: "Не удалось обработать голосовое: 404",
		},
		{
			name:       "unsupported update",
			deps:       &deps{},
			message:    &domain.Message{ID: 1, ChatID: 10, Media: &domain.Attachment{Kind: domain.Other}},
			wantPrefix: domain.UnsupportedText,
		},
		{
			name: "panicking completer",
			deps: &deps{completer: &fakeCompleter{
				complete: func(_ context.Context, _ domain.Request) (domain.ModelResponse, error) {
					panic("nil pointer")
				}}},
			message:    &domain.Message{ID: 1, ChatID: 10, Text: "вопрос"},
			wantPrefix: "Извините, временная ошибка:",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher := newDispatcher(tc.deps)

			require.NoError(t, dispatcher.Dispatch(t.Context(), tc.message))

			replies := tc.deps.sender.repliesFor(10)
			require.Len(t, replies, 1)
			assert.True(t, strings.HasPrefix(replies[0], tc.wantPrefix), "got %q", replies[0])
		})
	}
}

func TestDispatch_Commands(t *testing.T) {
	sender := newFakeSender()
	registry := &command.Registry{}
	registry.Register(command.NewStart(sender, "", "/start"))

	d := &deps{sender: sender, params: DispatcherParams{Registry: registry}}
	dispatcher := newDispatcher(d)

	require.NoError(t, dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10, Text: "/start"}))
	require.NoError(t, dispatcher.Dispatch(t.Context(), &domain.Message{ID: 2, ChatID: 10, Text: "/price"}))

	replies := sender.repliesFor(10)
	require.Len(t, replies, 2)
	assert.Equal(t, domain.WelcomeText, replies[0])
	assert.Equal(t, "Неизвестная команда. Доступные команды: /start", replies[1])
	assert.Empty(t, d.completer.calls())
}

func TestDispatch_SendFailureStopsEmitting(t *testing.T) {
	sender := newFakeSender()
	sender.failAt = 1
	d := &deps{
		sender:    sender,
		completer: replying(strings.Repeat("x", 25)),
		params:    DispatcherParams{ChunkSize: 10},
	}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10, Text: "вопрос"})
	require.ErrorIs(t, err, domain.ErrSendingReplyFailed)

	assert.Len(t, sender.repliesFor(10), 1)
}

func TestDispatch_SlowTurnDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	completer := &fakeCompleter{complete: func(_ context.Context, request domain.Request) (domain.ModelResponse, error) {
		if request.Text == "slow" {
			<-release
		}
		return domain.ModelResponse{Response: "answer " + request.Text}, nil
	}}
	d := &deps{completer: completer, params: DispatcherParams{Pool: NewPool(2)}}
	dispatcher := newDispatcher(d)

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- dispatcher.Dispatch(context.Background(), &domain.Message{ID: 1, ChatID: 1, Text: "slow"})
	}()

	fastDone := make(chan error, 1)
	go func() {
		fastDone <- dispatcher.Dispatch(context.Background(), &domain.Message{ID: 2, ChatID: 2, Text: "fast"})
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fast turn was blocked by slow turn")
	}
	assert.Equal(t, []string{"answer fast"}, d.sender.repliesFor(2))
	assert.Empty(t, d.sender.repliesFor(1))

	close(release)
	require.NoError(t, <-slowDone)
	assert.Equal(t, []string{"answer slow"}, d.sender.repliesFor(1))
}

func TestApology(t *testing.T) {
	err := domain.NewTurnError(domain.UpstreamCallFailed, errors.New("boom"))

	assert.Equal(t, "Извините, временная ошибка: boom", apology(domain.CategoryText, domain.KindOf(err), err))
	assert.Equal(t, "Получил файл. Пока не удалось обработать: boom", apology(domain.CategoryMedia, domain.KindOf(err), err))
	assert.Equal(t, "Не удалось обработать голосовое: boom", apology(domain.CategoryVoice, domain.KindOf(err), err))

	fetchErr := domain.NewTurnError(domain.MediaFetchFailed, errors.New("timeout"))
	assert.Equal(t, "Не удалось загрузить файл: timeout", apology(domain.CategoryMedia, domain.KindOf(fetchErr), fetchErr))
	assert.Equal(t, "Не удалось обработать голосовое: timeout", apology(domain.CategoryVoice, domain.KindOf(fetchErr), fetchErr))
}

func TestDispatch_TurnLogCarriesUserAndRuneLength(t *testing.T) {
	out := captureLog(t)
	d := &deps{completer: replying("Привет")}
	dispatcher := newDispatcher(d)

	err := dispatcher.Dispatch(t.Context(), &domain.Message{ID: 1, ChatID: 10, Username: "@bob", Text: "вопрос"})
	require.NoError(t, err)

	logs := out.String()
	assert.Contains(t, logs, `"user":"@bob"`)
	assert.Contains(t, logs, `"state":"reply-ready"`)
	assert.Contains(t, logs, `"length":6`)
}
