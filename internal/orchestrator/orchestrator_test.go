package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jasper0315/icebreak-app/internal/events"
	"github.com/jasper0315/icebreak-app/internal/history"
	"github.com/jasper0315/icebreak-app/internal/phase"
	"github.com/jasper0315/icebreak-app/internal/prompt"
	"github.com/jasper0315/icebreak-app/internal/roster"
	"github.com/jasper0315/icebreak-app/internal/session"
)

type fakeProvider struct {
	reply   string
	err     error
	release chan struct{} // when set, StreamReply blocks until closed
	calls   atomic.Int32
}

func (f *fakeProvider) StreamReply(ctx context.Context, turns []prompt.Turn, onFragment func(string) error) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	for _, word := range strings.SplitAfter(f.reply, " ") {
		if onFragment != nil {
			if err := onFragment(word); err != nil {
				return "", err
			}
		}
	}
	return f.reply, nil
}

func newTestOrchestrator(t *testing.T, provider *fakeProvider, participants ...roster.Participant) (*Orchestrator, *session.Store, *session.Session) {
	t.Helper()
	if len(participants) == 0 {
		participants = []roster.Participant{{Name: "Yamada", Affiliation: "U Tokyo"}}
	}
	r, err := roster.New(participants)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	sessions := session.NewStore()
	hist := history.NewMemoryStore()
	convID, err := hist.StartConversation(context.Background())
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	sess := sessions.Create(r, convID)
	var p *fakeProvider
	if provider != nil {
		p = provider
	}
	var o *Orchestrator
	if p == nil {
		o = New(sessions, events.NewStore(), hist, nil, nil, nil)
	} else {
		o = New(sessions, events.NewStore(), hist, p, nil, nil)
	}
	return o, sessions, sess
}

func TestSubmitUtteranceHappyPath(t *testing.T) {
	p := &fakeProvider{reply: "ようこそ山田さん！ご趣味は？"}
	o, sessions, sess := newTestOrchestrator(t, p)

	msg, err := o.SubmitUtterance(context.Background(), sess.ID, "こんにちは")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Role != session.RoleAssistant || msg.Content != p.reply {
		t.Fatalf("unexpected reply message: %+v", msg)
	}

	msgs := sessions.ListMessages(sess.ID)
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant pair, got %d messages", len(msgs))
	}
	if msgs[0].Role != session.RoleUser || msgs[0].Phase != phase.IntroStart {
		t.Fatalf("user message should carry the pre-transition phase: %+v", msgs[0])
	}

	ph, idx, _ := sessions.Snapshot(sess.ID)
	if ph != phase.IntroReacting || idx != 0 {
		t.Fatalf("expected (intro_reacting, 0), got (%s, %d)", ph, idx)
	}
}

func TestClosingKeywordInOpeningUtterance(t *testing.T) {
	p := &fakeProvider{reply: "ありがとうございました！"}
	o, sessions, sess := newTestOrchestrator(t, p)

	if _, err := o.SubmitUtterance(context.Background(), sess.ID, "I am Yamada, nice to meet you, thank you."); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ph, idx, _ := sessions.Snapshot(sess.ID)
	if ph != phase.IntroNextPerson {
		t.Fatalf("expected intro_next_person, got %s", ph)
	}
	if idx != 1 {
		t.Fatalf("roster should advance to 1, got %d", idx)
	}
	if phase.Next(ph, "") != phase.IcebreakStart {
		t.Fatalf("next phase from here should be icebreak_start")
	}
}

func TestDuplicateSubmissionIsRejected(t *testing.T) {
	p := &fakeProvider{reply: "ok", release: make(chan struct{})}
	o, sessions, sess := newTestOrchestrator(t, p)

	done := make(chan error, 1)
	go func() {
		_, err := o.SubmitUtterance(context.Background(), sess.ID, "a")
		done <- err
	}()

	// Wait until the first turn holds the session, then submit again.
	deadline := time.After(2 * time.Second)
	for p.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("first turn never reached the provider")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if _, err := o.SubmitUtterance(context.Background(), sess.ID, "b"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("first turn: %v", err)
	}

	msgs := sessions.ListMessages(sess.ID)
	if len(msgs) != 2 {
		t.Fatalf("exactly one message pair expected, got %d", len(msgs))
	}
	if msgs[0].Content != "a" {
		t.Fatalf("only the first utterance should be recorded, got %q", msgs[0].Content)
	}
}

func TestProviderFailureLeavesPhaseAndRosterUntouched(t *testing.T) {
	p := &fakeProvider{err: errors.New("upstream down")}
	o, sessions, sess := newTestOrchestrator(t, p)

	msg, err := o.SubmitUtterance(context.Background(), sess.ID, "thank you")
	if err != nil {
		t.Fatalf("fallback path should not error: %v", err)
	}
	if msg.Content != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", msg.Content)
	}

	ph, idx, _ := sessions.Snapshot(sess.ID)
	if ph != phase.IntroStart || idx != 0 {
		t.Fatalf("phase/roster must not change on failure, got (%s, %d)", ph, idx)
	}

	// The session keeps accepting turns afterwards.
	p.err = nil
	p.reply = "復帰しました"
	if _, err := o.SubmitUtterance(context.Background(), sess.ID, "もう一度"); err != nil {
		t.Fatalf("session should recover: %v", err)
	}
}

func TestNoProviderConfigured(t *testing.T) {
	o, sessions, sess := newTestOrchestrator(t, nil)

	msg, err := o.SubmitUtterance(context.Background(), sess.ID, "hello")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Content != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", msg.Content)
	}
	ph, _, _ := sessions.Snapshot(sess.ID)
	if ph != phase.IntroStart {
		t.Fatalf("phase must stay put, got %s", ph)
	}
}

func TestEmptyUtteranceRejected(t *testing.T) {
	o, _, sess := newTestOrchestrator(t, &fakeProvider{reply: "x"})
	if _, err := o.SubmitUtterance(context.Background(), sess.ID, "  "); !errors.Is(err, ErrEmptyUtterance) {
		t.Fatalf("expected ErrEmptyUtterance, got %v", err)
	}
}

func TestKickoffAppendsOpeningReply(t *testing.T) {
	p := &fakeProvider{reply: "こんにちは！まずは山田さんから自己紹介をお願いします。"}
	o, sessions, sess := newTestOrchestrator(t, p)

	msg, err := o.Kickoff(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if msg.Role != session.RoleAssistant {
		t.Fatalf("kickoff should produce an assistant message: %+v", msg)
	}
	ph, idx, _ := sessions.Snapshot(sess.ID)
	if ph != phase.IntroStart || idx != 0 {
		t.Fatalf("kickoff must not move phase or roster, got (%s, %d)", ph, idx)
	}
	if len(sessions.ListMessages(sess.ID)) != 1 {
		t.Fatalf("expected only the opening reply in the log")
	}
}

func TestKickoffWithoutProviderUsesFallback(t *testing.T) {
	o, sessions, sess := newTestOrchestrator(t, nil)

	msg, err := o.Kickoff(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if msg.Content != fallbackReply {
		t.Fatalf("opening turn must fall back to the canned reply, got %q", msg.Content)
	}
	msgs := sessions.ListMessages(sess.ID)
	if len(msgs) != 1 || msgs[0].Content != fallbackReply {
		t.Fatalf("fallback reply should be the only logged message: %+v", msgs)
	}
	ph, idx, _ := sessions.Snapshot(sess.ID)
	if ph != phase.IntroStart || idx != 0 {
		t.Fatalf("kickoff must not move phase or roster, got (%s, %d)", ph, idx)
	}
}

func TestEmptyReplyStillCommitsPhase(t *testing.T) {
	p := &fakeProvider{reply: ""}
	o, sessions, sess := newTestOrchestrator(t, p)

	msg, err := o.SubmitUtterance(context.Background(), sess.ID, "こんにちは")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msg.Content != "" {
		t.Fatalf("an empty reply from a healthy provider is not a failure, got %q", msg.Content)
	}
	ph, _, _ := sessions.Snapshot(sess.ID)
	if ph != phase.IntroReacting {
		t.Fatalf("phase should advance on a successful turn, got %s", ph)
	}
}

func TestPhaseProgressionAcrossTurns(t *testing.T) {
	p := &fakeProvider{reply: "なるほど！"}
	o, sessions, sess := newTestOrchestrator(t, p,
		roster.Participant{Name: "Yamada", Affiliation: "U Tokyo"},
		roster.Participant{Name: "Sato", Affiliation: "Kyoto U"},
	)
	ctx := context.Background()

	steps := []struct {
		utterance string
		wantPhase phase.Phase
		wantIdx   int
	}{
		{"こんにちは", phase.IntroReacting, 0},
		{"山田です。趣味は将棋です", phase.IntroReacting, 0},
		{"以上です", phase.IntroNextPerson, 1},
		{"佐藤です", phase.IcebreakStart, 1},
		{"はい", phase.RandomTheme, 1},
		{"いいですね", phase.DeepDive, 1},
		{"続けましょう", phase.DeepDive, 1},
	}
	for i, step := range steps {
		if _, err := o.SubmitUtterance(ctx, sess.ID, step.utterance); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		ph, idx, _ := sessions.Snapshot(sess.ID)
		if ph != step.wantPhase || idx != step.wantIdx {
			t.Fatalf("turn %d: expected (%s, %d), got (%s, %d)", i, step.wantPhase, step.wantIdx, ph, idx)
		}
	}
}

func TestEndSealsSession(t *testing.T) {
	p := &fakeProvider{reply: "ok"}
	o, sessions, sess := newTestOrchestrator(t, p)

	if err := o.End(sess.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if got := sessions.Get(sess.ID).Status; got != session.StatusEnded {
		t.Fatalf("expected ended status, got %q", got)
	}
	if err := o.End("missing"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
