package file

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

type TelegramFiles interface {
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// TelegramFetcher resolves Telegram file IDs and downloads their content.
type TelegramFetcher struct {
	files TelegramFiles
}

func NewTelegramFetcher(files TelegramFiles) *TelegramFetcher {
	return &TelegramFetcher{files: files}
}

func (f *TelegramFetcher) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, errors.New("missing file id")
	}

	tgFile, err := f.files.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("error getting file from telegram api: %w", err)
	}

	log.Debug().Str("fileId", fileID).Str("path", tgFile.FilePath).Msg("downloading telegram file")

	data, err := DownloadFile(ctx, f.files.FileDownloadLink(tgFile))
	if err != nil {
		return nil, fmt.Errorf("error downloading telegram file: %w", err)
	}

	return data, nil
}
