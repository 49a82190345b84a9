package domain

import (
	"path/filepath"
	"strings"
)

type Category int

const (
	CategoryUnsupported Category = iota
	CategoryCommand
	CategoryText
	CategoryMedia
	CategoryVoice
)

func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "command"
	case CategoryText:
		return "text"
	case CategoryMedia:
		return "media"
	case CategoryVoice:
		return "voice"
	default:
		return "unsupported"
	}
}

var audioExtensions = map[string]struct{}{
	".oga":  {},
	".ogg":  {},
	".opus": {},
	".mp3":  {},
	".m4a":  {},
	".wav":  {},
}

// Classify assigns a message to exactly one handling category. Audio detection runs
// before the generic media check, so an audio file sent as a document is Voice.
func Classify(message *Message) Category {
	if message == nil {
		return CategoryUnsupported
	}

	if message.Media != nil {
		if IsAudio(message.Media) {
			return CategoryVoice
		}

		switch message.Media.Kind {
		case Photo, Video, Document:
			return CategoryMedia
		default:
			return CategoryUnsupported
		}
	}

	text := strings.TrimSpace(message.Text)
	switch {
	case strings.HasPrefix(text, "/"):
		return CategoryCommand
	case text != "":
		return CategoryText
	default:
		return CategoryUnsupported
	}
}

// IsAudio reports whether an attachment carries an audio payload, whatever its declared kind.
func IsAudio(a *Attachment) bool {
	switch a.Kind {
	case Voice, Audio:
		return true
	case Document:
		if strings.HasPrefix(strings.ToLower(a.MimeType), "audio/") {
			return true
		}
		_, ok := audioExtensions[strings.ToLower(filepath.Ext(a.FileName))]
		return ok
	default:
		return false
	}
}

// IsImage reports whether an attachment can be inlined into a vision request.
func IsImage(a *Attachment) bool {
	if a == nil {
		return false
	}

	switch a.Kind {
	case Photo:
		return true
	case Document:
		return strings.HasPrefix(strings.ToLower(a.MimeType), "image/")
	default:
		return false
	}
}
