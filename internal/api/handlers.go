package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jasper0315/icebreak-app/internal/auth"
	"github.com/jasper0315/icebreak-app/internal/config"
	"github.com/jasper0315/icebreak-app/internal/events"
	"github.com/jasper0315/icebreak-app/internal/history"
	"github.com/jasper0315/icebreak-app/internal/orchestrator"
	"github.com/jasper0315/icebreak-app/internal/roster"
	"github.com/jasper0315/icebreak-app/internal/session"
)

// Conductor is the slice of the orchestrator the HTTP layer drives.
type Conductor interface {
	Kickoff(ctx context.Context, sessionID string) (session.Message, error)
	SubmitUtterance(ctx context.Context, sessionID, text string) (session.Message, error)
	StopSpeaking(sessionID string) bool
	End(sessionID string) error
}

type Handlers struct {
	cfg      config.Config
	sessions *session.Store
	events   *events.Store
	hist     history.Store
	cond     Conductor
}

func NewHandlers(cfg config.Config, sessions *session.Store, evts *events.Store, hist history.Store, cond Conductor) *Handlers {
	return &Handlers{cfg: cfg, sessions: sessions, events: evts, hist: hist, cond: cond}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handlers) mintToken(sessionID string) string {
	if h.cfg.Client.TokenSecret == "" {
		return ""
	}
	exp := time.Now().Add(time.Duration(h.cfg.Client.TokenExpMin) * time.Minute).Unix()
	return auth.GenerateSessionToken(h.cfg.Client.TokenSecret, sessionID, exp)
}

// HandleReady reports whether the core dependencies are wired. It does
// not call out to providers; cmd/healthcheck does the deep checks.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ready := h.cond != nil && h.hist != nil
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready})
}

// HandleCreateSession validates the participant list, opens a durable
// conversation, and fires the opening facilitator turn in the
// background. A missing roster is a client error: the setup form must
// be completed first.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Participants []roster.Participant `json:"participants"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ros, err := roster.New(body.Participants)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Durable history is best-effort: a failed open degrades to a
	// memory-only session rather than blocking setup.
	convID := ""
	if h.hist != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		id, err := h.hist.StartConversation(ctx)
		cancel()
		if err != nil {
			log.Printf("[api] start conversation: %v", err)
		} else {
			convID = id
		}
	}

	sess := h.sessions.Create(ros, convID)
	h.events.Append(sess.ID, "session_created", map[string]any{"participants": ros.Len()})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if _, err := h.cond.Kickoff(ctx, sess.ID); err != nil {
			log.Printf("[api] kickoff session=%s: %v", sess.ID, err)
		}
	}()

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      sess.ID,
		"conversation_id": sess.ConversationID,
		"token":           h.mintToken(sess.ID),
		"phase":           sess.Phase,
		"participants":    ros.Participants,
	})
}

func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.sessions.Get(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      sess.ID,
		"conversation_id": sess.ConversationID,
		"phase":           sess.Phase,
		"status":          sess.Status,
		"roster":          sess.Roster,
	})
}

func (h *Handlers) HandleUtterance(w http.ResponseWriter, r *http.Request, id string) {
	if h.sessions.Get(id) == nil {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.cond.SubmitUtterance(r.Context(), id, body.Text)
	switch {
	case errors.Is(err, orchestrator.ErrEmptyUtterance):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, orchestrator.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (h *Handlers) HandleStopSpeaking(w http.ResponseWriter, r *http.Request, id string) {
	if h.sessions.Get(id) == nil {
		http.NotFound(w, r)
		return
	}
	stopped := h.cond.StopSpeaking(id)
	writeJSON(w, http.StatusOK, map[string]any{"stopped": stopped})
}

func (h *Handlers) HandleEndSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.cond.End(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleListMessages(w http.ResponseWriter, r *http.Request, id string) {
	if h.sessions.Get(id) == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"messages":   h.sessions.ListMessages(id),
	})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request, id string) {
	if h.sessions.Get(id) == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"events":     h.events.List(id),
	})
}

// HandleHistory replays the durable record for a session's
// conversation. Unavailable history is a 404, not a failure of the
// live session.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request, id string) {
	sess := h.sessions.Get(id)
	if sess == nil {
		http.NotFound(w, r)
		return
	}
	if h.hist == nil || sess.ConversationID == "" {
		http.Error(w, "history unavailable", http.StatusNotFound)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	msgs, err := h.hist.LoadHistory(ctx, sess.ConversationID)
	if err != nil {
		if errors.Is(err, history.ErrConversationNotFound) {
			http.Error(w, "history unavailable", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": sess.ConversationID,
		"messages":        msgs,
	})
}

func (h *Handlers) HandleMintWSToken(w http.ResponseWriter, r *http.Request, id string) {
	if h.sessions.Get(id) == nil {
		http.NotFound(w, r)
		return
	}
	tok := h.mintToken(id)
	if tok == "" {
		http.Error(w, "client auth not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": tok})
}
