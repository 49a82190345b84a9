package service

import (
	"fixfur/internal/core/domain"
	"fmt"
	"strings"
)

const (
	DefaultTemperature    = 0.5
	DefaultTextMaxTokens  = 700
	DefaultMediaMaxTokens = 600
)

// Content is the user input a request is built from: text, optionally with an inline image.
type Content struct {
	Text  string
	Image *domain.InlineImage
}

type BuilderParams struct {
	SystemPrompt   string
	MediaPrompt    string
	Temperature    float32
	TextMaxTokens  int
	MediaMaxTokens int
}

// Builder constructs upstream requests per message category. It holds no per-turn state.
type Builder struct {
	systemPrompt   string
	mediaPrompt    string
	temperature    float32
	textMaxTokens  int
	mediaMaxTokens int
}

func NewBuilder(p BuilderParams) *Builder {
	b := &Builder{
		systemPrompt:   p.SystemPrompt,
		mediaPrompt:    p.MediaPrompt,
		temperature:    p.Temperature,
		textMaxTokens:  p.TextMaxTokens,
		mediaMaxTokens: p.MediaMaxTokens,
	}

	if b.systemPrompt == "" {
		b.systemPrompt = domain.DefaultSystemPrompt
	}
	if b.mediaPrompt == "" {
		b.mediaPrompt = domain.DefaultMediaPrompt
	}
	if b.temperature <= 0 {
		b.temperature = DefaultTemperature
	}
	if b.textMaxTokens <= 0 {
		b.textMaxTokens = DefaultTextMaxTokens
	}
	if b.mediaMaxTokens <= 0 {
		b.mediaMaxTokens = DefaultMediaMaxTokens
	}

	return b
}

// Build creates the upstream request for a category. Voice content is the transcript of
// the audio and is built exactly like a text message.
func (b *Builder) Build(category domain.Category, content Content) (domain.Request, error) {
	switch category {
	case domain.CategoryText, domain.CategoryVoice:
		text := strings.TrimSpace(content.Text)
		if text == "" {
			return domain.Request{}, domain.NewTurnError(domain.UpstreamCallFailed, domain.ErrEmptyPrompt)
		}

		return domain.Request{
			SystemInstruction: b.systemPrompt,
			Text:              text,
			Temperature:       b.temperature,
			MaxTokens:         b.textMaxTokens,
		}, nil
	case domain.CategoryMedia:
		text := strings.TrimSpace(content.Text)
		if text == "" {
			text = b.mediaPrompt
		}

		return domain.Request{
			SystemInstruction: b.systemPrompt,
			Text:              text,
			Image:             content.Image,
			Temperature:       b.temperature,
			MaxTokens:         b.mediaMaxTokens,
		}, nil
	case domain.CategoryCommand, domain.CategoryUnsupported:
		return domain.Request{}, domain.NewTurnError(domain.ClassificationUnsupported,
			fmt.Errorf("no upstream request for category %s", category))
	default:
		return domain.Request{}, domain.NewTurnError(domain.ClassificationUnsupported,
			fmt.Errorf("unknown category %d", int(category)))
	}
}
