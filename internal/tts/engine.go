package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Engine converts one sentence of text into playable audio. Engines
// are swappable at startup; the speaker is agnostic to which one is
// bound.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, sentence string) ([]byte, error)
}

// ElevenLabs synthesizes speech through the ElevenLabs REST API.
type ElevenLabs struct {
	apiKey  string
	voiceID string
	httpc   *http.Client
}

func NewElevenLabs(apiKey, voiceID string) *ElevenLabs {
	return &ElevenLabs{
		apiKey:  apiKey,
		voiceID: voiceID,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

func (e *ElevenLabs) Synthesize(ctx context.Context, sentence string) ([]byte, error) {
	url := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s", e.voiceID)
	body, _ := json.Marshal(map[string]any{"text": sentence})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("accept", "audio/mpeg")
	req.Header.Set("content-type", "application/json")

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("elevenlabs status=%d body=%s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

// Silent is the no-op engine bound when speech output is turned off.
// Playback events still flow so the client UI stays consistent.
type Silent struct{}

func (Silent) Name() string { return "off" }

func (Silent) Synthesize(ctx context.Context, sentence string) ([]byte, error) {
	return nil, nil
}
