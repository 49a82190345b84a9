package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fixfur/internal/core/domain"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	DefaultTranscriptionModel = "whisper-1"
	defaultAudioFileName      = "voice.ogg"
)

// Whisper transcribes audio through an OpenAI-compatible /audio/transcriptions endpoint.
type Whisper struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewWhisper(apiKey, baseURL, model string) *Whisper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultTranscriptionModel
	}

	return &Whisper{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	text, err := w.transcribe(ctx, audio, fileName)
	if err != nil {
		return "", domain.NewTurnError(domain.TranscriptionFailed, err)
	}

	return text, nil
}

func (w *Whisper) transcribe(ctx context.Context, audio []byte, fileName string) (string, error) {
	if fileName == "" {
		fileName = defaultAudioFileName
	}

	payloadBuf := new(bytes.Buffer)
	writer := multipart.NewWriter(payloadBuf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("error writing audio: %w", err)
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("error writing model field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("error closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", payloadBuf)
	if err != nil {
		return "", fmt.Errorf("error creating transcription request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error executing transcription request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("error reading transcription response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("transcription API error (status %d): %s", res.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("transcription API error (status %d)", res.StatusCode)
	}

	var result transcriptionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error unmarshalling transcription response: %w", err)
	}

	log.Debug().Int("length", utf8.RuneCountInString(result.Text)).Msg("transcription received")

	return strings.TrimSpace(result.Text), nil
}
