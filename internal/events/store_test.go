package events

import "testing"

func TestAppendAndList(t *testing.T) {
	st := NewStore()
	st.Append("s1", "phase_transition", map[string]any{"from": "intro_start", "to": "intro_reacting"})
	st.Append("s1", "speech_started", nil)

	evts := st.List("s1")
	if len(evts) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evts))
	}
	if evts[0].Type != "phase_transition" || evts[1].Type != "speech_started" {
		t.Fatalf("events out of order: %+v", evts)
	}
	if len(st.List("other")) != 0 {
		t.Fatalf("unknown session should have no events")
	}
}

func TestCapTruncatesWithWarning(t *testing.T) {
	st := NewStore()
	for i := 0; i < maxEvents+10; i++ {
		st.Append("s1", "tick", nil)
	}
	evts := st.List("s1")
	if len(evts) != maxEvents {
		t.Fatalf("expected feed capped at %d, got %d", maxEvents, len(evts))
	}
	if evts[len(evts)-1].Type != "events_truncated" {
		t.Fatalf("expected trailing truncation warning, got %s", evts[len(evts)-1].Type)
	}
}
