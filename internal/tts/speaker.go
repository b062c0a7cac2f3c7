package tts

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Sink receives playback output and lifecycle signals for one session.
// The production sink pushes over the session WebSocket; tests use a
// recording fake.
type Sink interface {
	SpeechStarted(sessionID string, unit int, sentence string)
	SpeechAudio(sessionID string, unit int, audio []byte) error
	SpeechStopped(sessionID string, reason string)
}

// Speaker runs the sequential playback chain: one sentence at a time,
// each unit awaited before the next starts. A unit failure is logged
// and skipped, never aborting the rest of the chain. Stop cancels the
// chain for a session without touching phase or roster state, which
// has already committed by the time speech begins.
type Speaker struct {
	engine Engine
	sink   Sink

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func NewSpeaker(engine Engine, sink Sink) *Speaker {
	return &Speaker{engine: engine, sink: sink, active: make(map[string]context.CancelFunc)}
}

// Speak synthesizes and plays text for a session. It returns an error
// summarizing failed units; a non-nil error does not mean playback was
// abandoned.
func (s *Speaker) Speak(ctx context.Context, sessionID, text string) error {
	units := SplitSentences(text)
	if len(units) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if prev := s.active[sessionID]; prev != nil {
		prev()
	}
	s.active[sessionID] = cancel
	s.mu.Unlock()

	reason := "completed"
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.active, sessionID)
		s.mu.Unlock()
		s.sink.SpeechStopped(sessionID, reason)
	}()

	failed := 0
	for i, unit := range units {
		if ctx.Err() != nil {
			reason = "stopped"
			metricSynthesis.WithLabelValues("stopped").Inc()
			break
		}
		s.sink.SpeechStarted(sessionID, i, unit)
		audio, err := s.engine.Synthesize(ctx, unit)
		if err != nil {
			if ctx.Err() != nil {
				reason = "stopped"
				metricSynthesis.WithLabelValues("stopped").Inc()
				break
			}
			failed++
			metricSynthesis.WithLabelValues("error").Inc()
			log.Printf("[tts] unit %d failed session=%s engine=%s: %v", i, sessionID, s.engine.Name(), err)
			continue
		}
		if len(audio) > 0 {
			if err := s.sink.SpeechAudio(sessionID, i, audio); err != nil {
				failed++
				metricSynthesis.WithLabelValues("error").Inc()
				log.Printf("[tts] deliver unit %d failed session=%s: %v", i, sessionID, err)
				continue
			}
		}
		metricSynthesis.WithLabelValues("ok").Inc()
	}

	if failed > 0 {
		return fmt.Errorf("speech output: %d of %d units failed", failed, len(units))
	}
	return nil
}

// Stop cancels the currently playing chain for a session, if any.
func (s *Speaker) Stop(sessionID string) bool {
	s.mu.Lock()
	cancel := s.active[sessionID]
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Speaking reports whether a chain is active for the session.
func (s *Speaker) Speaking(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[sessionID] != nil
}
