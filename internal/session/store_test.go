package session

import (
	"testing"

	"github.com/jasper0315/icebreak-app/internal/phase"
	"github.com/jasper0315/icebreak-app/internal/roster"
)

func testRoster(t *testing.T) *roster.Roster {
	t.Helper()
	r, err := roster.New([]roster.Participant{
		{Name: "Yamada", Affiliation: "U Tokyo"},
		{Name: "Sato", Affiliation: "Kyoto U"},
	})
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	return r
}

func TestCreateAndGet(t *testing.T) {
	st := NewStore()
	sess := st.Create(testRoster(t), "conv-1")
	if sess.Phase != phase.Initial {
		t.Fatalf("new session should start in %s, got %s", phase.Initial, sess.Phase)
	}
	got := st.Get(sess.ID)
	if got == nil || got.ID != sess.ID {
		t.Fatalf("expected session %q, got %#v", sess.ID, got)
	}
	if st.Get("missing") != nil {
		t.Fatalf("unknown id should return nil")
	}
}

func TestAppendAndListMessages(t *testing.T) {
	st := NewStore()
	sess := st.Create(testRoster(t), "conv-1")

	if _, err := st.AppendMessage(sess.ID, NewMessage(RoleUser, "hello", phase.IntroStart)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := st.AppendMessage(sess.ID, NewMessage(RoleAssistant, "welcome", phase.IntroReacting)); err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs := st.ListMessages(sess.ID)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("messages out of order: %+v", msgs)
	}

	// Mutating the returned slice must not touch the log.
	msgs[0].Content = "tampered"
	if st.ListMessages(sess.ID)[0].Content != "hello" {
		t.Fatalf("ListMessages should return a copy")
	}
}

func TestCommitAdvancesPhaseAndRosterTogether(t *testing.T) {
	st := NewStore()
	sess := st.Create(testRoster(t), "conv-1")

	if err := st.Commit(sess.ID, phase.IntroNextPerson, true); err != nil {
		t.Fatalf("commit: %v", err)
	}
	p, idx, ok := st.Snapshot(sess.ID)
	if !ok || p != phase.IntroNextPerson || idx != 1 {
		t.Fatalf("expected (intro_next_person, 1), got (%s, %d, %v)", p, idx, ok)
	}

	if err := st.Commit(sess.ID, phase.IcebreakStart, false); err != nil {
		t.Fatalf("commit: %v", err)
	}
	p, idx, _ = st.Snapshot(sess.ID)
	if p != phase.IcebreakStart || idx != 1 {
		t.Fatalf("roster should not advance on plain phase commit, got (%s, %d)", p, idx)
	}
}

func TestAppendToUnknownSession(t *testing.T) {
	st := NewStore()
	if _, err := st.AppendMessage("missing", NewMessage(RoleUser, "x", phase.IntroStart)); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
