package domain

type MediaKind string

const (
	Photo    MediaKind = "photo"
	Video    MediaKind = "video"
	Document MediaKind = "document"
	Voice    MediaKind = "voice"
	Audio    MediaKind = "audio"
	// Other covers attachments the bot has no handling path for, e.g. stickers or locations.
	Other MediaKind = "other"
)

// Attachment references a file stored by the transport. The binary is fetched on demand.
type Attachment struct {
	Kind     MediaKind
	FileID   string
	FileName string
	MimeType string
}

// Message is an inbound update, immutable once received and owned by a single turn.
type Message struct {
	ID       int
	ChatID   int64
	Username string
	Text     string
	Caption  string
	Media    *Attachment
}

type Action string

const (
	Typing Action = "typing"
)

// InlineImage is binary image data embedded into a completion request.
type InlineImage struct {
	MimeType string
	Data     []byte
}

// Request is the upstream completion request built fresh for every turn.
type Request struct {
	SystemInstruction string
	Text              string
	Image             *InlineImage
	Temperature       float32
	MaxTokens         int
}

type ModelResponse struct {
	Response string
	Metadata ResponseMetadata
}

type ResponseMetadata struct {
	Model            string
	CompletionTokens int
	TotalTokens      int
}
