package clientws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/jasper0315/icebreak-app/internal/auth"
	"github.com/jasper0315/icebreak-app/internal/config"
	"github.com/jasper0315/icebreak-app/internal/events"
	"github.com/jasper0315/icebreak-app/internal/orchestrator"
	"github.com/jasper0315/icebreak-app/internal/session"
)

// ClientMessage is one JSON frame received from the browser.
type ClientMessage struct {
	Type string `json:"type"` // "utterance_final" | "stop_speaking"
	Text string `json:"text,omitempty"`
}

// Conductor is the slice of the orchestrator the socket needs.
type Conductor interface {
	SubmitUtterance(ctx context.Context, sessionID, text string) (session.Message, error)
	StopSpeaking(sessionID string) bool
}

type Server struct {
	Cfg      config.Config
	Sessions *session.Store
	Events   *events.Store
	Reg      *Registry
	Cond     Conductor
}

func NewServer(cfg config.Config, sessions *session.Store, evts *events.Store, reg *Registry, cond Conductor) *Server {
	return &Server{Cfg: cfg, Sessions: sessions, Events: evts, Reg: reg, Cond: cond}
}

// HandleSessionWS upgrades the browser connection for one session.
// The token rides in the query string because the browser WebSocket
// API cannot set headers.
func (s *Server) HandleSessionWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}
	if s.Sessions.Get(sessionID) == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	token := q.Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	if s.Cfg.Client.TokenSecret == "" {
		http.Error(w, "client auth not configured", http.StatusUnauthorized)
		return
	}
	if _, _, err := auth.ValidateSessionToken(s.Cfg.Client.TokenSecret, token, sessionID, time.Now(), s.Cfg.Client.TokenSkewSecs); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Printf("[clientws] accept: %v", err)
		return
	}
	if s.Reg.Replace(sessionID, c) {
		s.Events.Append(sessionID, "client_replaced", nil)
	}
	s.Events.Append(sessionID, "client_connected", nil)

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText {
			continue
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Events.Append(sessionID, "client_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		s.dispatch(ctx, sessionID, msg)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(sessionID, c)
	s.Events.Append(sessionID, "client_disconnected", nil)
}

// dispatch runs one client message. Utterances are processed inline on
// the read loop, which serializes turns per connection; the
// orchestrator's own guard covers overlapping sources.
func (s *Server) dispatch(ctx context.Context, sessionID string, msg ClientMessage) {
	switch msg.Type {
	case "utterance_final":
		if _, err := s.Cond.SubmitUtterance(ctx, sessionID, msg.Text); err != nil {
			switch {
			case errors.Is(err, orchestrator.ErrBusy):
				// Duplicate submission from overlapping input events:
				// drop silently, exactly one turn proceeds.
			case errors.Is(err, orchestrator.ErrEmptyUtterance):
				_ = s.Reg.Send(sessionID, Event{Type: "error", Reason: "empty_utterance"})
			default:
				log.Printf("[clientws] utterance session=%s: %v", sessionID, err)
				_ = s.Reg.Send(sessionID, Event{Type: "error", Reason: "internal"})
			}
		}
	case "stop_speaking":
		s.Cond.StopSpeaking(sessionID)
	default:
		s.Events.Append(sessionID, "client_msg_unknown", map[string]any{"type": msg.Type})
	}
}
