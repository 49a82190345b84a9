package port

import (
	"context"
	"fixfur/internal/core/domain"
)

type Completer interface {
	// Complete sends a single completion request upstream. Every failure is returned as a
	// *domain.TurnError of kind UpstreamCallFailed, and an empty reply counts as a failure.
	Complete(ctx context.Context, request domain.Request) (domain.ModelResponse, error)
}

type Transcriber interface {
	// Transcribe converts an audio binary to text. Failures are *domain.TurnError of kind
	// TranscriptionFailed.
	Transcribe(ctx context.Context, audio []byte, fileName string) (string, error)
}
