package port

import (
	"context"
	"fixfur/internal/core/domain"
)

type TextSender interface {
	// SendMessageReply sends a single text message as a reply to the given message and returns the sent message ID.
	SendMessageReply(ctx context.Context, message *domain.Message, text string) (int, error)
	// SendChatAction repeatedly sends a chat action (e.g. typing) to a chat until ctx is done.
	SendChatAction(ctx context.Context, chatID int64, action domain.Action)
}

type FileFetcher interface {
	// FetchFile downloads the binary content of a transport-stored file.
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
}
