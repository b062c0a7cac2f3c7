package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]bool
	block  chan struct{} // when set, Synthesize waits for ctx or close
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Synthesize(ctx context.Context, sentence string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentence)
	f.mu.Unlock()
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failOn[sentence] {
		return nil, errors.New("synthesis failed")
	}
	return []byte("audio:" + sentence), nil
}

type recordingSink struct {
	mu      sync.Mutex
	started []string
	audio   []string
	stopped []string
}

func (r *recordingSink) SpeechStarted(sessionID string, unit int, sentence string) {
	r.mu.Lock()
	r.started = append(r.started, sentence)
	r.mu.Unlock()
}

func (r *recordingSink) SpeechAudio(sessionID string, unit int, audio []byte) error {
	r.mu.Lock()
	r.audio = append(r.audio, string(audio))
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) SpeechStopped(sessionID string, reason string) {
	r.mu.Lock()
	r.stopped = append(r.stopped, reason)
	r.mu.Unlock()
}

func TestSpeakPlaysUnitsSequentially(t *testing.T) {
	eng := &fakeEngine{}
	sink := &recordingSink{}
	sp := NewSpeaker(eng, sink)

	if err := sp.Speak(context.Background(), "s1", "Hello. How are you? Fine\n"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if len(sink.audio) != 3 {
		t.Fatalf("expected 3 audio units, got %d", len(sink.audio))
	}
	if sink.audio[0] != "audio:Hello" || sink.audio[2] != "audio:Fine" {
		t.Fatalf("units out of order: %q", sink.audio)
	}
	if len(sink.stopped) != 1 || sink.stopped[0] != "completed" {
		t.Fatalf("expected completed stop signal, got %q", sink.stopped)
	}
}

func TestSpeakContinuesOnUnitError(t *testing.T) {
	eng := &fakeEngine{failOn: map[string]bool{"How are you": true}}
	sink := &recordingSink{}
	sp := NewSpeaker(eng, sink)

	err := sp.Speak(context.Background(), "s1", "Hello. How are you? Fine.")
	if err == nil {
		t.Fatalf("expected aggregate error for failed unit")
	}
	if len(sink.audio) != 2 {
		t.Fatalf("remaining units should still play, got %q", sink.audio)
	}
	if len(eng.calls) != 3 {
		t.Fatalf("every unit should be attempted, got %d", len(eng.calls))
	}
}

func TestStopCancelsChain(t *testing.T) {
	eng := &fakeEngine{block: make(chan struct{})}
	sink := &recordingSink{}
	sp := NewSpeaker(eng, sink)

	done := make(chan error, 1)
	go func() {
		done <- sp.Speak(context.Background(), "s1", "Hello. How are you? Fine.")
	}()

	// Wait for the first unit to be in flight, then stop.
	for {
		eng.mu.Lock()
		n := len(eng.calls)
		eng.mu.Unlock()
		if n > 0 {
			break
		}
	}
	if !sp.Stop("s1") {
		t.Fatalf("stop should find an active chain")
	}
	<-done

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.stopped) != 1 || sink.stopped[0] != "stopped" {
		t.Fatalf("expected stopped signal, got %q", sink.stopped)
	}
	if len(sink.audio) != 0 {
		t.Fatalf("no audio should be delivered after stop, got %q", sink.audio)
	}
	if sp.Speaking("s1") {
		t.Fatalf("chain should be released after stop")
	}
}

func TestStopWithoutActiveChain(t *testing.T) {
	sp := NewSpeaker(Silent{}, &recordingSink{})
	if sp.Stop("nope") {
		t.Fatalf("stop with no chain should report false")
	}
}
