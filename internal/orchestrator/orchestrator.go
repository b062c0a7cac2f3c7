package orchestrator

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jasper0315/icebreak-app/internal/events"
	"github.com/jasper0315/icebreak-app/internal/history"
	"github.com/jasper0315/icebreak-app/internal/llm"
	"github.com/jasper0315/icebreak-app/internal/phase"
	"github.com/jasper0315/icebreak-app/internal/prompt"
	"github.com/jasper0315/icebreak-app/internal/session"
	"github.com/jasper0315/icebreak-app/internal/tts"
)

const (
	stateIdle          = "idle"
	stateAwaitingReply = "awaiting_reply"
	stateStreaming     = "streaming"
	stateSpeaking      = "speaking"
)

var (
	ErrBusy           = errors.New("a reply is already in flight")
	ErrEmptyUtterance = errors.New("utterance is empty")
)

// fallbackReply is shown when the model provider is missing or fails.
// The session keeps going; phase and roster are left untouched.
const fallbackReply = "すみません、いまはうまく応答できませんでした。もう一度話しかけてください。"

// Notifier pushes transient display state to the client. Partial
// fragments are never persisted.
type Notifier interface {
	ReplyFragment(sessionID, text string)
	ReplyDone(sessionID string, msg session.Message)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) ReplyFragment(string, string)      {}
func (NopNotifier) ReplyDone(string, session.Message) {}

// Orchestrator drives one turn at a time per session: append the
// utterance, obtain a streamed reply, commit phase and roster on the
// success path, then hand the reply to the speech chain.
type Orchestrator struct {
	sessions *session.Store
	events   *events.Store
	hist     history.Store
	provider llm.Provider
	speaker  *tts.Speaker
	notify   Notifier

	mu   sync.Mutex
	runs map[string]*runState
}

type runState struct {
	state  string
	cancel context.CancelFunc
}

func New(sessions *session.Store, evts *events.Store, hist history.Store, provider llm.Provider, speaker *tts.Speaker, notify Notifier) *Orchestrator {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Orchestrator{
		sessions: sessions,
		events:   evts,
		hist:     hist,
		provider: provider,
		speaker:  speaker,
		notify:   notify,
		runs:     make(map[string]*runState),
	}
}

func (o *Orchestrator) run(sessionID string) *runState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.runs[sessionID]
	if st == nil {
		st = &runState{state: stateIdle}
		o.runs[sessionID] = st
	}
	return st
}

// acquire flips a session from idle to awaiting_reply, rejecting the
// call when a turn is already in flight.
func (o *Orchestrator) acquire(sessionID string) (*runState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := o.runs[sessionID]
	if st == nil {
		st = &runState{state: stateIdle}
		o.runs[sessionID] = st
	}
	if st.state != stateIdle {
		return nil, ErrBusy
	}
	o.setStateLocked(st, stateAwaitingReply)
	return st, nil
}

func (o *Orchestrator) setState(st *runState, to string) {
	o.mu.Lock()
	o.setStateLocked(st, to)
	o.mu.Unlock()
}

func (o *Orchestrator) setStateLocked(st *runState, to string) {
	if st.state == to {
		return
	}
	metricStateTransitions.WithLabelValues(st.state, to).Inc()
	st.state = to
}

// Kickoff runs the opening facilitator turn for a fresh session so the
// AI speaks first. No phase or roster change happens here.
func (o *Orchestrator) Kickoff(ctx context.Context, sessionID string) (session.Message, error) {
	sess := o.sessions.Get(sessionID)
	if sess == nil {
		return session.Message{}, session.ErrSessionNotFound
	}
	st, err := o.acquire(sessionID)
	if err != nil {
		return session.Message{}, err
	}
	defer o.setState(st, stateIdle)

	cur, _, _ := o.sessions.Snapshot(sessionID)
	reply, ok := o.streamReply(ctx, st, sessionID, prompt.BuildExchange(nil, cur))
	if !ok {
		reply = fallbackReply
	}

	msg, appendErr := o.sessions.AppendMessage(sessionID, session.NewMessage(session.RoleAssistant, reply, cur))
	if appendErr != nil {
		return session.Message{}, appendErr
	}
	o.persistAsync(sess.ConversationID, sessionID, msg)
	o.notify.ReplyDone(sessionID, msg)
	if !ok {
		o.events.Append(sessionID, "provider_unavailable", nil)
		return msg, nil
	}
	o.speakAsync(st, sessionID, reply)
	return msg, nil
}

// SubmitUtterance processes one finalized utterance. It is a guarded
// no-op while a previous turn is still in flight.
func (o *Orchestrator) SubmitUtterance(ctx context.Context, sessionID, text string) (session.Message, error) {
	if strings.TrimSpace(text) == "" {
		return session.Message{}, ErrEmptyUtterance
	}
	sess := o.sessions.Get(sessionID)
	if sess == nil {
		return session.Message{}, session.ErrSessionNotFound
	}
	st, err := o.acquire(sessionID)
	if err != nil {
		metricTurns.WithLabelValues("rejected").Inc()
		return session.Message{}, err
	}
	defer o.setState(st, stateIdle)
	start := time.Now()

	// The utterance and the prompt both carry the phase before any
	// transition.
	cur, _, _ := o.sessions.Snapshot(sessionID)
	userMsg, err := o.sessions.AppendMessage(sessionID, session.NewMessage(session.RoleUser, text, cur))
	if err != nil {
		return session.Message{}, err
	}
	o.persistAsync(sess.ConversationID, sessionID, userMsg)

	exchange := prompt.BuildExchange(o.sessions.ListMessages(sessionID), cur)
	reply, ok := o.streamReply(ctx, st, sessionID, exchange)
	if !ok {
		reply = fallbackReply
	}

	replyMsg, err := o.sessions.AppendMessage(sessionID, session.NewMessage(session.RoleAssistant, reply, cur))
	if err != nil {
		return session.Message{}, err
	}
	o.persistAsync(sess.ConversationID, sessionID, replyMsg)
	o.notify.ReplyDone(sessionID, replyMsg)

	if !ok {
		// Provider failure: phase and roster stay exactly as they were.
		metricTurns.WithLabelValues("fallback").Inc()
		o.events.Append(sessionID, "provider_unavailable", nil)
		return replyMsg, nil
	}

	next := phase.Next(cur, text)
	if cur == phase.IntroStart && next == phase.IntroReacting {
		// A closing signal in the opening utterance finishes that
		// speaker's introduction within the same turn.
		next = phase.Next(next, text)
	}
	advance := next == phase.IntroNextPerson && cur != phase.IntroNextPerson
	if err := o.sessions.Commit(sessionID, next, advance); err != nil {
		return session.Message{}, err
	}
	if next != cur {
		o.events.Append(sessionID, "phase_transition", map[string]any{
			"from": string(cur), "to": string(next), "roster_advanced": advance,
		})
	}

	o.speakAsync(st, sessionID, reply)
	metricTurns.WithLabelValues("ok").Inc()
	metricTurnDurationMS.Observe(float64(time.Since(start).Milliseconds()))
	return replyMsg, nil
}

// streamReply obtains the full reply text, forwarding fragments to the
// notifier. ok is false when the provider is missing or the stream
// failed; an empty reply with ok=true is a legitimate model answer.
func (o *Orchestrator) streamReply(ctx context.Context, st *runState, sessionID string, exchange []prompt.Turn) (reply string, ok bool) {
	if o.provider == nil {
		log.Printf("[orch] no llm provider bound session=%s", sessionID)
		return "", false
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	st.cancel = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		st.cancel = nil
		o.mu.Unlock()
	}()

	streaming := false
	reply, err := o.provider.StreamReply(ctx, exchange, func(fragment string) error {
		if !streaming {
			streaming = true
			o.setState(st, stateStreaming)
		}
		o.notify.ReplyFragment(sessionID, fragment)
		return nil
	})
	if err != nil {
		log.Printf("[orch] llm stream failed session=%s: %v", sessionID, err)
		return "", false
	}
	return reply, true
}

// speakAsync hands the reply to the speech chain. Playback does not
// gate acceptance of the next utterance, so the chain runs detached
// and records its own completion.
func (o *Orchestrator) speakAsync(st *runState, sessionID, text string) {
	if o.speaker == nil {
		return
	}
	o.setState(st, stateSpeaking)
	go func() {
		if err := o.speaker.Speak(context.Background(), sessionID, text); err != nil {
			o.events.Append(sessionID, "speech_output_error", map[string]any{"error": err.Error()})
		}
	}()
}

// StopSpeaking cancels the current playback chain only. Phase and
// roster state are not rolled back.
func (o *Orchestrator) StopSpeaking(sessionID string) bool {
	if o.speaker == nil {
		return false
	}
	stopped := o.speaker.Stop(sessionID)
	if stopped {
		o.events.Append(sessionID, "speech_stop_requested", nil)
	}
	return stopped
}

// End closes a session: playback stops, the conversation record is
// sealed best-effort, and the run state is dropped.
func (o *Orchestrator) End(sessionID string) error {
	sess := o.sessions.Get(sessionID)
	if sess == nil {
		return session.ErrSessionNotFound
	}
	if o.speaker != nil {
		o.speaker.Stop(sessionID)
	}
	o.mu.Lock()
	if st := o.runs[sessionID]; st != nil && st.cancel != nil {
		st.cancel()
	}
	delete(o.runs, sessionID)
	o.mu.Unlock()

	if err := o.sessions.SetStatus(sessionID, session.StatusEnded); err != nil {
		return err
	}
	if o.hist != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.hist.EndConversation(ctx, sess.ConversationID); err != nil {
			log.Printf("[orch] end conversation failed session=%s: %v", sessionID, err)
		}
	}
	o.events.Append(sessionID, "session_ended", nil)
	return nil
}

// persistAsync writes a message to durable history without blocking or
// affecting the live turn.
func (o *Orchestrator) persistAsync(conversationID, sessionID string, msg session.Message) {
	if o.hist == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.hist.AppendMessage(ctx, conversationID, msg); err != nil {
			log.Printf("[orch] persist failed session=%s msg=%s: %v", sessionID, msg.ID, err)
			o.events.Append(sessionID, "persist_failed", map[string]any{"message_id": msg.ID})
		}
	}()
}
