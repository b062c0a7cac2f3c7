package clientws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/jasper0315/icebreak-app/internal/session"
)

// Event is one JSON frame pushed to the browser client.
type Event struct {
	Type    string           `json:"type"`
	Text    string           `json:"text,omitempty"`
	Unit    int              `json:"unit,omitempty"`
	Audio   []byte           `json:"audio,omitempty"`
	Reason  string           `json:"reason,omitempty"`
	Message *session.Message `json:"message,omitempty"`
}

// Registry keeps at most one client connection per session and doubles
// as the push side of the conversation flow: it implements the
// orchestrator's notifier and the speech chain's sink.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*ws.Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*ws.Conn)} }

// Replace sets the connection for a session and closes the previous one if present.
func (r *Registry) Replace(sessionID string, c *ws.Conn) (prevClosed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[sessionID]; ok && old != nil {
		_ = old.Close(ws.StatusNormalClosure, "replaced")
		prevClosed = true
	}
	r.conns[sessionID] = c
	return
}

// Remove drops the session's connection only when it is still the one
// the caller owned. After a reconnect the replaced handler's cleanup
// must not evict the live connection.
func (r *Registry) Remove(sessionID string, c *ws.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[sessionID] == c {
		delete(r.conns, sessionID)
	}
}

// Send pushes an event to the session's client, if connected.
func (r *Registry) Send(sessionID string, evt Event) error {
	r.mu.Lock()
	c := r.conns[sessionID]
	r.mu.Unlock()
	if c == nil {
		return nil
	}
	b, _ := json.Marshal(evt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.Write(ctx, ws.MessageText, b)
}

// orchestrator.Notifier

func (r *Registry) ReplyFragment(sessionID, text string) {
	_ = r.Send(sessionID, Event{Type: "reply_fragment", Text: text})
}

func (r *Registry) ReplyDone(sessionID string, msg session.Message) {
	_ = r.Send(sessionID, Event{Type: "reply_done", Message: &msg})
}

// tts.Sink

func (r *Registry) SpeechStarted(sessionID string, unit int, sentence string) {
	_ = r.Send(sessionID, Event{Type: "speech_started", Unit: unit, Text: sentence})
}

func (r *Registry) SpeechAudio(sessionID string, unit int, audio []byte) error {
	return r.Send(sessionID, Event{Type: "speech_audio", Unit: unit, Audio: audio})
}

func (r *Registry) SpeechStopped(sessionID, reason string) {
	_ = r.Send(sessionID, Event{Type: "speech_stopped", Reason: reason})
}
