package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSendingReplyFailed = errors.New("failed to send reply")
	ErrEmptyPrompt        = errors.New("empty prompt")
	ErrEmptyReply         = errors.New("upstream returned an empty reply")
	ErrMissingConfig      = errors.New("missing required configuration")
)

type ErrorKind int

const (
	ConfigMissing ErrorKind = iota + 1
	ClassificationUnsupported
	MediaFetchFailed
	UpstreamCallFailed
	TranscriptionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigMissing:
		return "ConfigMissing"
	case ClassificationUnsupported:
		return "ClassificationUnsupported"
	case MediaFetchFailed:
		return "MediaFetchFailed"
	case UpstreamCallFailed:
		return "UpstreamCallFailed"
	case TranscriptionFailed:
		return "TranscriptionFailed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// TurnError is a recoverable failure of a single turn, tagged with its kind.
type TurnError struct {
	Kind ErrorKind
	Err  error
}

func NewTurnError(kind ErrorKind, err error) *TurnError {
	return &TurnError{Kind: kind, Err: err}
}

func (e *TurnError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first TurnError in err's chain, defaulting to UpstreamCallFailed.
func KindOf(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return UpstreamCallFailed
}
