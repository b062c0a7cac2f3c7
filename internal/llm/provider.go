package llm

import (
	"context"
	"errors"

	"github.com/jasper0315/icebreak-app/internal/prompt"
)

var ErrNotConfigured = errors.New("language model provider not configured")

// Params are the fixed generation settings applied to every call.
type Params struct {
	Temperature     float64
	TopK            float64
	TopP            float64
	MaxOutputTokens int
}

// Provider streams a facilitator reply for an assembled exchange.
// onFragment is invoked for each partial text chunk as it arrives; the
// full reply text is returned once the stream completes. Returning an
// error from onFragment aborts the stream.
type Provider interface {
	StreamReply(ctx context.Context, turns []prompt.Turn, onFragment func(text string) error) (string, error)
}
