package domain

import (
	"mime"
	"path/filepath"
)

const defaultAudioExtension = ".ogg"

// audioMimeExtensions covers the containers the transcription API accepts. The system mime
// table is only consulted for types missing here.
var audioMimeExtensions = map[string]string{
	"audio/ogg":    ".ogg",
	"audio/opus":   ".ogg",
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/mp4":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/aac":    ".m4a",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/wave":   ".wav",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/webm":   ".webm",
	"video/mp4":    ".mp4",
	"video/webm":   ".webm",
}

// AudioFileName returns the upload name for an audio attachment. The transcription API
// picks its decoder from the extension, so unnamed files get one matching their mime type.
func AudioFileName(a *Attachment) string {
	if a == nil {
		return "voice" + defaultAudioExtension
	}

	if a.FileName != "" && filepath.Ext(a.FileName) != "" {
		return a.FileName
	}

	base := a.FileName
	if base == "" {
		base = "voice"
	}

	return base + audioExtension(a.MimeType)
}

func audioExtension(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return defaultAudioExtension
	}

	if ext, ok := audioMimeExtensions[mediaType]; ok {
		return ext
	}

	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}

	return defaultAudioExtension
}
