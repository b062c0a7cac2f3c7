package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/jasper0315/icebreak-app/internal/phase"
	"github.com/jasper0315/icebreak-app/internal/roster"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Message is one entry in a session's append-only conversation log.
type Message struct {
	ID        string      `json:"id"`
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
	Phase     phase.Phase `json:"phase"`
}

// NewMessage builds a message stamped with the current wall clock.
func NewMessage(role, content string, p phase.Phase) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Phase:     p,
	}
}

// Session is one facilitated conversation: roster, phase, and message
// log, owned exclusively by the Store that created it.
type Session struct {
	ID             string         `json:"session_id"`
	ConversationID string         `json:"conversation_id"`
	Roster         *roster.Roster `json:"roster"`
	Phase          phase.Phase    `json:"phase"`
	Messages       []Message      `json:"messages"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         string         `json:"status"`
}
