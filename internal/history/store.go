package history

import (
	"context"
	"errors"

	"github.com/jasper0315/icebreak-app/internal/session"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Store is the durable record of conversation turns. The live session
// never depends on it for correctness: callers treat every method as
// best-effort and log failures instead of propagating them.
type Store interface {
	StartConversation(ctx context.Context) (string, error)
	AppendMessage(ctx context.Context, conversationID string, msg session.Message) error
	LoadHistory(ctx context.Context, conversationID string) ([]session.Message, error)
	EndConversation(ctx context.Context, conversationID string) error
	Close() error
}
